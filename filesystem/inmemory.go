package filesystem

import (
	"errors"
	"os"
	"sync"
)

type InMemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte

	// FailWrites makes every WriteFile fail, for exercising flush errors.
	FailWrites bool
}

var ErrWriteFailed = errors.New("in-memory write failure")

func NewInMemoryFileSystem() *InMemoryFileSystem {
	return &InMemoryFileSystem{
		files: make(map[string][]byte),
	}
}

var _ FileSystem = (*InMemoryFileSystem)(nil)

func (fs *InMemoryFileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, exists := fs.files[path]
	return exists
}

// ReadFile returns a copy of the stored content.
func (fs *InMemoryFileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	data, exists := fs.files[path]
	if !exists {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (fs *InMemoryFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.FailWrites {
		return &os.PathError{Op: "write", Path: path, Err: ErrWriteFailed}
	}
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

// MkdirAll is a no-op; the in-memory filesystem has no directories.
func (fs *InMemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return nil
}
