package filesystem

import (
	"os"
)

// FileSystem is the host storage under disk images and manifest sources.
type FileSystem interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the file at path. Readers observe either the old or the
	// new content, never a mix.
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}
