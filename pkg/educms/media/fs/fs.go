package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tendant/edu-cms/pkg/educms"
)

const backendName = "fs"

// Backend is a filesystem implementation of the educms.MediaStore interface
type Backend struct {
	baseDir string
}

var _ educms.MediaStore = (*Backend)(nil)

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem media backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: filepath.Clean(config.BaseDir)}, nil
}

// Store writes r to a fresh path under the base directory
func (b *Backend) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	key := educms.NewMediaPath(ext)
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", b.fail(key, "store", fmt.Errorf("failed to create directory: %w", err))
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", b.fail(key, "store", fmt.Errorf("failed to create file: %w", err))
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		os.Remove(filePath)
		return "", b.fail(key, "store", fmt.Errorf("failed to write file: %w", err))
	}

	return key, nil
}

// Open opens a stored file for reading
func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	filePath, err := b.resolve(path)
	if err != nil {
		return nil, b.fail(path, "open", err)
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, b.fail(path, "open", educms.ErrNotFound)
	} else if err != nil {
		return nil, b.fail(path, "open", fmt.Errorf("failed to open file: %w", err))
	}
	return file, nil
}

// Delete removes a stored file. A missing file is not an error.
func (b *Backend) Delete(ctx context.Context, path string) error {
	filePath, err := b.resolve(path)
	if err != nil {
		return b.fail(path, "delete", err)
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return b.fail(path, "delete", fmt.Errorf("failed to delete file: %w", err))
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

func (b *Backend) resolve(path string) (string, error) {
	cleaned, err := educms.CleanMediaPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(cleaned)), nil
}

func (b *Backend) fail(path, op string, err error) error {
	return &educms.MediaError{Backend: backendName, Path: path, Op: op, Err: err}
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || len(dir) <= len(b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
