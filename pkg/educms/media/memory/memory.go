package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tendant/edu-cms/pkg/educms"
)

// Backend is an in-memory implementation of the educms.MediaStore interface
type Backend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ educms.MediaStore = (*Backend)(nil)

// New creates a new in-memory media backend
func New() *Backend {
	return &Backend{files: make(map[string][]byte)}
}

// Store keeps the content of r under a fresh path
func (b *Backend) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := educms.NewMediaPath(ext)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = data
	return path, nil
}

// Put stores data under a caller-chosen path
func (b *Backend) Put(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = bytes.Clone(data)
}

// Exists reports whether path holds a file
func (b *Backend) Exists(path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.files[path]
	return ok
}

func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.files[path]
	if !ok {
		return nil, &educms.MediaError{Backend: "memory", Path: path, Op: "open", Err: educms.ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, path)
	return nil
}
