package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	t.Run("put get round trip", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "snapshots/workers/a.json", []byte(`{"a":1}`)))
		data, err := s.Get(ctx, "snapshots/workers/a.json")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"a":1}`), data)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "snapshots/workers/a.json", []byte(`{"a":2}`)))
		data, err := s.Get(ctx, "snapshots/workers/a.json")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"a":2}`), data)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "snapshots/nope.json")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by prefix sorted", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "snapshots/worksites/b.json", []byte(`{}`)))
		require.NoError(t, s.Put(ctx, "other/c.json", []byte(`{}`)))

		keys, err := s.List(ctx, "snapshots/")
		require.NoError(t, err)
		require.Equal(t, []string{
			"snapshots/workers/a.json",
			"snapshots/worksites/b.json",
		}, keys)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "snapshots/workers/a.json"))
		require.NoError(t, s.Delete(ctx, "snapshots/workers/a.json"))
		_, err := s.Get(ctx, "snapshots/workers/a.json")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects traversal keys", func(t *testing.T) {
		require.Error(t, s.Put(ctx, "../escape.json", []byte(`{}`)))
		require.Error(t, s.Put(ctx, "a//b.json", []byte(`{}`)))
		require.Error(t, s.Put(ctx, "", []byte(`{}`)))
	})
}
