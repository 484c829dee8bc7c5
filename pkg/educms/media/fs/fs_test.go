package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
	"github.com/tendant/edu-cms/pkg/educms/media/fs"
)

func TestFSBackend(t *testing.T) {
	baseDir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: baseDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("StoreOpenDelete", func(t *testing.T) {
		path, err := backend.Store(ctx, strings.NewReader("audio bytes"), "MP3")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, ".mp3"))

		rc, err := backend.Open(ctx, path)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "audio bytes", string(data))

		require.NoError(t, backend.Delete(ctx, path))
		_, err = os.Stat(filepath.Join(baseDir, filepath.FromSlash(path)))
		assert.True(t, os.IsNotExist(err))

		entries, err := os.ReadDir(baseDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "empty date directories are removed")
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		assert.NoError(t, backend.Delete(ctx, "2024/01/missing.png"))
	})

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := backend.Open(ctx, "2024/01/missing.png")
		assert.ErrorIs(t, err, educms.ErrNotFound)
	})

	t.Run("RejectsEscapingPaths", func(t *testing.T) {
		for _, path := range []string{"../outside.png", "/etc/passwd", "a/../../b"} {
			err := backend.Delete(ctx, path)
			assert.ErrorIs(t, err, educms.ErrInvalidMediaPath, path)
		}
	})
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}
