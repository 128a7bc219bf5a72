package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/threadchat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
)

func TestThreadRepoGetOrCreateIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	title := testutil.UniqueTitle("idem")

	a, err := repo.GetOrCreateByTitle(dbc, title)
	require.NoError(t, err)
	b, err := repo.GetOrCreateByTitle(dbc, "  "+title+" ")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, title, b.Title)
}

func TestThreadRepoGetOrCreateConcurrent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))
	title := testutil.UniqueTitle("race")

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th, err := repo.GetOrCreateByTitle(dbctx.Context{Ctx: context.Background()}, title)
			errs[i] = err
			if th != nil {
				ids[i] = th.ID
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestThreadRepoRejectsBlankTitle(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))

	_, err := repo.GetOrCreateByTitle(dbctx.Context{Ctx: context.Background()}, "   ")
	require.ErrorIs(t, err, types.ErrEmptyTitle)
	require.True(t, apierr.Is(err, apierr.CodeInvalidInput))
}

func TestThreadRepoGetByIDMissing(t *testing.T) {
	db := testutil.DB(t)
	repo := NewThreadRepo(db, testutil.Logger(t))

	_, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, uuid.New())
	require.ErrorIs(t, err, types.ErrThreadNotFound)
}

func TestThreadRepoListAndLock(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	a := testutil.SeedThread(t, ctx, tx, testutil.UniqueTitle("list-a"))
	b := testutil.SeedThread(t, ctx, tx, testutil.UniqueTitle("list-b"))

	rows, err := repo.List(dbc, 0)
	require.NoError(t, err)
	seen := map[uuid.UUID]bool{}
	for _, r := range rows {
		seen[r.ID] = true
	}
	require.True(t, seen[a.ID])
	require.True(t, seen[b.ID])

	locked, err := repo.LockByID(dbc, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Title, locked.Title)

	_, err = repo.LockByID(dbctx.Context{Ctx: ctx}, a.ID)
	require.Error(t, err)
}
