package chat

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/yungbote/threadchat-backend/internal/data/db"
	types "github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type MessageRepo interface {
	Append(dbc dbctx.Context, threadID uuid.UUID, msgs []types.NewMessage) ([]int64, error)
	AppendOne(dbc dbctx.Context, threadID uuid.UUID, role types.Role, content types.Content) (int64, error)
	Count(dbc dbctx.Context, threadID uuid.UUID) (int64, error)
	LastIdx(dbc dbctx.Context, threadID uuid.UUID) (int64, bool, error)
	ListRecent(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.Message, error)
	ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*types.Message, error)
}

type messageRepo struct {
	db      *gorm.DB
	threads ThreadRepo
	log     *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{
		db:      db,
		threads: NewThreadRepo(db, log),
		log:     log.With("repo", "MessageRepo"),
	}
}

// Append writes msgs as one contiguous block at the end of the thread and
// returns the assigned indices in input order. The thread row lock makes
// MAX(idx)+1 safe against concurrent appenders of the same thread.
func (r *messageRepo) Append(dbc dbctx.Context, threadID uuid.UUID, msgs []types.NewMessage) ([]int64, error) {
	if len(msgs) == 0 {
		return []int64{}, nil
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			return nil, apierr.InputFormat("%w: %q", types.ErrInvalidRole, m.Role)
		}
	}

	var out []int64
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if _, err := r.threads.LockByID(txc, threadID); err != nil {
			return err
		}

		var start int64
		if err := tx.Model(&types.Message{}).
			Select("COALESCE(MAX(idx), -1) + 1").
			Where("thread_id = ?", threadID).
			Scan(&start).Error; err != nil {
			return err
		}

		rows := make([]types.Message, len(msgs))
		idx := make([]int64, len(msgs))
		for i, m := range msgs {
			idx[i] = start + int64(i)
			rows[i] = types.Message{
				ThreadID: threadID,
				Idx:      idx[i],
				Role:     m.Role,
				Content:  m.Content,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		out = idx
		return nil
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return out, nil
}

func (r *messageRepo) AppendOne(dbc dbctx.Context, threadID uuid.UUID, role types.Role, content types.Content) (int64, error) {
	idx, err := r.Append(dbc, threadID, []types.NewMessage{{Role: role, Content: content}})
	if err != nil {
		return 0, err
	}
	return idx[0], nil
}

func (r *messageRepo) Count(dbc dbctx.Context, threadID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("thread_id = ?", threadID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// LastIdx reports the highest idx of the thread; ok is false for an empty thread.
func (r *messageRepo) LastIdx(dbc dbctx.Context, threadID uuid.UUID) (int64, bool, error) {
	var last sql.NullInt64
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Select("MAX(idx)").
		Where("thread_id = ?", threadID).
		Scan(&last).Error; err != nil {
		return 0, false, err
	}
	return last.Int64, last.Valid, nil
}

// ListRecent returns the newest limit messages, oldest first.
func (r *messageRepo) ListRecent(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		return []*types.Message{}, nil
	}
	var out []*types.Message
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("thread_id = ?", threadID).
		Order("idx DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*types.Message, error) {
	var out []*types.Message
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("thread_id = ?", threadID).
		Order("idx ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) inTx(dbc dbctx.Context, fn func(tx *gorm.DB) error) error {
	return dbc.DB(r.db).Transaction(fn)
}

func mapWriteErr(err error) error {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, types.ErrThreadNotFound), dbpkg.IsForeignKeyViolation(err):
		return apierr.Referential(types.ErrThreadNotFound)
	case dbpkg.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", types.ErrConflict, err)
	default:
		return err
	}
}
