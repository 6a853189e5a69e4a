package file_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/file"
)

func TestLocalStorage(t *testing.T) {
	t.Parallel()

	storage, err := file.NewLocalStorage(t.TempDir(), "/static")
	require.NoError(t, err)

	ctx := context.Background()
	fh := newFileHeader(t, "avatar.png", pngHeader)

	t.Run("save and exists", func(t *testing.T) {
		saved, err := storage.Save(ctx, fh, "avatars/user-1.png")
		require.NoError(t, err)
		assert.Equal(t, "avatar.png", saved.Filename)
		assert.Equal(t, "avatars/user-1.png", saved.RelativePath)
		assert.Equal(t, "image/png", saved.MIMEType)
		assert.True(t, storage.Exists(ctx, "avatars/user-1.png"))
	})

	t.Run("url", func(t *testing.T) {
		assert.Equal(t, "/static/avatars/user-1.png", storage.URL("avatars/user-1.png"))
	})

	t.Run("delete", func(t *testing.T) {
		saved, err := storage.Save(ctx, fh, "avatars/user-2.png")
		require.NoError(t, err)
		require.NoError(t, storage.Delete(ctx, saved.RelativePath))
		assert.False(t, storage.Exists(ctx, saved.RelativePath))
	})

	t.Run("delete missing", func(t *testing.T) {
		assert.ErrorIs(t, storage.Delete(ctx, "avatars/missing.png"), file.ErrFileNotFound)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		_, err := storage.Save(ctx, fh, "../escape.png")
		assert.ErrorIs(t, err, file.ErrInvalidPath)
	})
}
