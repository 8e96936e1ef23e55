package rule

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	g, err := store.Create(ctx, "黃金交叉進場", RuleTypeEntry)
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)

	c, err := store.AddCondition(ctx, g.ID, maCondition())
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	got, err := store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "黃金交叉進場", got.Name)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, OpCrossAbove, got.Conditions[0].Op)

	groups, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	require.NoError(t, store.RemoveCondition(ctx, g.ID, c.ID))
	got, err = store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Conditions)

	require.NoError(t, store.Delete(ctx, g.ID))
	_, err = store.Get(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t)

	g, err := store.Create(ctx, "進場", RuleTypeEntry)
	require.NoError(t, err)
	_, err = store.AddCondition(ctx, g.ID, maCondition())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "進場", got.Name)
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, "MA5", got.Conditions[0].Left)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.AddCondition(ctx, "missing", maCondition())
	assert.ErrorIs(t, err, ErrNotFound)

	g, err := store.Create(ctx, "進場", RuleTypeEntry)
	require.NoError(t, err)
	err = store.RemoveCondition(ctx, g.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
