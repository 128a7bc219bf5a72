package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/threadchat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/threadchat-backend/internal/domain/chat"
	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
	"github.com/yungbote/threadchat-backend/internal/platform/dbctx"
)

func newThread(t *testing.T, repo ThreadRepo, prefix string) *types.Thread {
	t.Helper()
	th, err := repo.GetOrCreateByTitle(dbctx.Context{Ctx: context.Background()}, testutil.UniqueTitle(prefix))
	require.NoError(t, err)
	return th
}

func text(role types.Role, s string) types.NewMessage {
	return types.NewMessage{Role: role, Content: types.TextContent(s)}
}

func TestMessageRepoAppendIsContiguous(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	threads := NewThreadRepo(db, log)
	repo := NewMessageRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	th := newThread(t, threads, "contig")

	idx, err := repo.Append(dbc, th.ID, []types.NewMessage{text(types.RoleUser, "a"), text(types.RoleAssistant, "b")})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, idx)

	one, err := repo.AppendOne(dbc, th.ID, types.RoleUser, types.TextContent("c"))
	require.NoError(t, err)
	require.EqualValues(t, 2, one)

	idx, err = repo.Append(dbc, th.ID, []types.NewMessage{text(types.RoleUser, "d"), text(types.RoleAssistant, "e"), text(types.RoleUser, "f")})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4, 5}, idx)

	all, err := repo.ListByThread(dbc, th.ID)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i, m := range all {
		require.EqualValues(t, i, m.Idx)
	}
	require.Equal(t, "f", all[5].Content.Text)

	n, err := repo.Count(dbc, th.ID)
	require.NoError(t, err)
	require.EqualValues(t, 6, n)

	last, ok, err := repo.LastIdx(dbc, th.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, last)
}

func TestMessageRepoEmptyThread(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := NewMessageRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	th := newThread(t, NewThreadRepo(db, log), "empty")

	_, ok, err := repo.LastIdx(dbc, th.ID)
	require.NoError(t, err)
	require.False(t, ok)

	idx, err := repo.Append(dbc, th.ID, nil)
	require.NoError(t, err)
	require.Empty(t, idx)

	n, err := repo.Count(dbc, th.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMessageRepoConcurrentAppenders(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := NewMessageRepo(db, log)
	th := newThread(t, NewThreadRepo(db, log), "concurrent")

	const writers = 6
	const batches = 5
	var wg sync.WaitGroup
	errs := make(chan error, writers*batches)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				_, err := repo.Append(dbctx.Context{Ctx: context.Background()}, th.ID, []types.NewMessage{
					text(types.RoleUser, "q"),
					text(types.RoleAssistant, "a"),
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := repo.ListByThread(dbctx.Context{Ctx: context.Background()}, th.ID)
	require.NoError(t, err)
	require.Len(t, all, writers*batches*2)
	for i, m := range all {
		require.EqualValues(t, i, m.Idx)
		// each batch stays adjacent
		if i%2 == 0 {
			require.Equal(t, types.RoleUser, m.Role)
		} else {
			require.Equal(t, types.RoleAssistant, m.Role)
		}
	}
}

func TestMessageRepoMissingThreadIsReferential(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMessageRepo(db, testutil.Logger(t))

	_, err := repo.Append(dbctx.Context{Ctx: context.Background()}, uuid.New(), []types.NewMessage{text(types.RoleUser, "x")})
	require.ErrorIs(t, err, types.ErrThreadNotFound)
	require.True(t, apierr.Is(err, apierr.CodeReferential))
}

func TestMessageRepoRejectsInvalidRole(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := NewMessageRepo(db, log)
	th := newThread(t, NewThreadRepo(db, log), "role")

	_, err := repo.Append(dbctx.Context{Ctx: context.Background()}, th.ID, []types.NewMessage{
		text(types.RoleUser, "ok"),
		text(types.Role("narrator"), "bad"),
	})
	require.ErrorIs(t, err, types.ErrInvalidRole)

	n, err := repo.Count(dbctx.Context{Ctx: context.Background()}, th.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMessageRepoListRecentSuffix(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := NewMessageRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	th := newThread(t, NewThreadRepo(db, log), "recent")
	other := newThread(t, NewThreadRepo(db, log), "recent-other")

	for i := 0; i < 7; i++ {
		_, err := repo.AppendOne(dbc, th.ID, types.RoleUser, types.TextContent(string(rune('a'+i))))
		require.NoError(t, err)
	}
	_, err := repo.AppendOne(dbc, other.ID, types.RoleUser, types.TextContent("zzz"))
	require.NoError(t, err)

	for _, k := range []int{0, 1, 3, 7, 20} {
		got, err := repo.ListRecent(dbc, th.ID, k)
		require.NoError(t, err)
		want := k
		if want > 7 {
			want = 7
		}
		require.Len(t, got, want)
		for i, m := range got {
			require.EqualValues(t, 7-want+i, m.Idx)
			require.Equal(t, th.ID, m.ThreadID)
		}
	}
}

func TestMessageRepoStructuredContent(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := NewMessageRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	th := newThread(t, NewThreadRepo(db, log), "structured")

	c, err := types.JSONContent(json.RawMessage(`{"tool":"lookup","args":{"id":7}}`))
	require.NoError(t, err)
	_, err = repo.AppendOne(dbc, th.ID, types.RoleTool, c)
	require.NoError(t, err)
	_, err = repo.AppendOne(dbc, th.ID, types.RoleAssistant, types.TextContent(`{"not":"parsed"}`))
	require.NoError(t, err)

	all, err := repo.ListByThread(dbc, th.ID)
	require.NoError(t, err)
	require.Equal(t, types.ContentJSON, all[0].Content.Kind)
	require.JSONEq(t, `{"tool":"lookup","args":{"id":7}}`, string(all[0].Content.JSON))
	require.Equal(t, types.ContentText, all[1].Content.Kind)
	require.Equal(t, `{"not":"parsed"}`, all[1].Content.Text)
}
