package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocert/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	t.Run("round trips content through an opaque url", func(t *testing.T) {
		url, err := store.Put(ctx, []byte("dossier"), "/requests/42/main.pdf")
		require.NoError(t, err)
		assert.Equal(t, "memstore://requests/42/main.pdf", url)

		content, err := store.Get(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, []byte("dossier"), content)
	})

	t.Run("returned bytes are isolated from the caller", func(t *testing.T) {
		original := []byte("immutable")
		url, err := store.Put(ctx, original, "isolated.pdf")
		require.NoError(t, err)
		original[0] = 'X'

		content, err := store.Get(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), content)

		content[0] = 'Y'
		again, err := store.Get(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})

	t.Run("empty paths refuse", func(t *testing.T) {
		_, err := store.Put(ctx, []byte("x"), "   ")
		require.Error(t, err)
	})

	t.Run("unknown urls map to not found", func(t *testing.T) {
		_, err := store.Get(ctx, "memstore://missing.pdf")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = store.Get(ctx, "https://elsewhere.example/file.pdf")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
