// Package fsys provides the filesystem abstraction used by the release
// pipeline. All file access (configuration, version handoff, cache, local
// artifact storage, reports) goes through the Filesystem interface so tests
// can run against an in-memory filesystem.
package fsys

import (
	"io/fs"
	"os"
	"path/filepath"
)

// File represents an open file handle supporting basic I/O operations.
// Implementations should behave consistently with the standard library.
type File interface {
	Close() error
	Name() string
	Read(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Stat() (fs.FileInfo, error)
	Write(p []byte) (n int, err error)
}

// Filesystem is the set of filesystem operations the pipeline relies on.
type Filesystem interface {
	// Create creates or truncates the named file.
	Create(name string) (File, error)

	// Open opens the named file for reading.
	Open(name string) (File, error)

	// OpenFile opens the named file with the given flag and permissions.
	OpenFile(name string, flag int, perm os.FileMode) (File, error)

	// Exists reports whether the named file or directory exists.
	Exists(path string) (bool, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(filename string, data []byte, perm os.FileMode) error

	// Stat returns file info for the named file.
	Stat(name string) (os.FileInfo, error)

	// MkdirAll creates the named directory along with any necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadDir reads the named directory and returns its entries.
	ReadDir(dirname string) ([]os.FileInfo, error)

	// Remove removes the named file or (empty) directory.
	Remove(name string) error

	// Walk walks the file tree rooted at root, calling walkFn for each entry.
	Walk(root string, walkFn filepath.WalkFunc) error

	// TempDir creates a new temporary directory under dir and returns its path.
	TempDir(dir, prefix string) (string, error)
}
