// internal/cache/sqlite_test.go
package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "scratch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wallet:owner-1", []byte(`{"balance":"5"}`)))

	value, ok, err := c.Get(ctx, "wallet:owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"balance":"5"}`), value)
}

func TestSQLiteCacheGetAbsent(t *testing.T) {
	c := newTestCache(t)

	value, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestSQLiteCacheSetReplaces(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("first")))
	require.NoError(t, c.Set(ctx, "k", []byte("second")))

	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), value)
}

func TestSQLiteCacheRemove(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	require.NoError(t, c.Remove(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent key is not an error.
	assert.NoError(t, c.Remove(ctx, "k"))
}
