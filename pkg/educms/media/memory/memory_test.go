package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
	"github.com/tendant/edu-cms/pkg/educms/media/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	path, err := backend.Store(ctx, strings.NewReader("png"), ".png")
	require.NoError(t, err)
	assert.True(t, backend.Exists(path))

	rc, err := backend.Open(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, backend.Delete(ctx, path))
	assert.False(t, backend.Exists(path))
	assert.NoError(t, backend.Delete(ctx, path))

	_, err = backend.Open(ctx, path)
	assert.ErrorIs(t, err, educms.ErrNotFound)
}
