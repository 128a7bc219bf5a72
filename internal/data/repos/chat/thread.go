package chat

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

const (
	defaultThreadListLimit = 100
	maxThreadListLimit     = 500
)

type ThreadRepo interface {
	GetOrCreateByTitle(dbc dbctx.Context, title string) (*types.Thread, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Thread, error)
	GetByTitle(dbc dbctx.Context, title string) (*types.Thread, error)
	List(dbc dbctx.Context, limit int) ([]*types.Thread, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Thread, error)
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, log *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: log.With("repo", "ThreadRepo")}
}

// GetOrCreateByTitle converges concurrent callers on one row through the
// unique title index: the insert is a no-op on conflict and the row is
// always re-read.
func (r *threadRepo) GetOrCreateByTitle(dbc dbctx.Context, title string) (*types.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.InputFormat("%w", types.ErrEmptyTitle)
	}
	existing, err := r.GetByTitle(dbc, title)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, types.ErrThreadNotFound) {
		return nil, err
	}

	row := &types.Thread{ID: uuid.New(), Title: title}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		r.log.Debug("Thread created", "thread_id", row.ID, "title", title)
	}
	return r.GetByTitle(dbc, title)
}

func (r *threadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Thread, error) {
	if id == uuid.Nil {
		return nil, types.ErrThreadNotFound
	}
	var out types.Thread
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrThreadNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) GetByTitle(dbc dbctx.Context, title string) (*types.Thread, error) {
	var out types.Thread
	if err := dbc.DB(r.db).Where("title = ?", strings.TrimSpace(title)).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrThreadNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) List(dbc dbctx.Context, limit int) ([]*types.Thread, error) {
	if limit <= 0 {
		limit = defaultThreadListLimit
	}
	if limit > maxThreadListLimit {
		limit = maxThreadListLimit
	}
	var out []*types.Thread
	if err := dbc.DB(r.db).
		Model(&types.Thread{}).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LockByID takes a row lock on the thread for the rest of dbc.Tx.
// SQLite ignores the clause; its single writer already serialises.
func (r *threadRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Thread, error) {
	if dbc.Tx == nil {
		return nil, errors.New("LockByID requires dbc.Tx")
	}
	var out types.Thread
	if err := dbc.DB(nil).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrThreadNotFound
		}
		return nil, err
	}
	return &out, nil
}
