package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// file wraps a go-billy File and satisfies the File interface.
type file struct {
	file billy.File
	fs   *FS
}

// Close implements File.Close.
func (f *file) Close() error {
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("fsys: close %q: %w", f.file.Name(), err)
	}
	return nil
}

// Name implements File.Name.
func (f *file) Name() string {
	return f.file.Name()
}

// Read implements File.Read.
func (f *file) Read(p []byte) (n int, err error) {
	n, err = f.file.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		return n, fmt.Errorf("fsys: read %q: %w", f.file.Name(), err)
	}
	return n, nil
}

// Seek implements File.Seek.
func (f *file) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	if err != nil {
		return pos, fmt.Errorf("fsys: seek %q: %w", f.file.Name(), err)
	}
	return pos, nil
}

// Stat implements File.Stat.
// billy files carry no Stat of their own, so this goes through the filesystem.
func (f *file) Stat() (fs.FileInfo, error) {
	return f.fs.Stat(f.file.Name())
}

// Write implements File.Write.
func (f *file) Write(p []byte) (n int, err error) {
	n, err = f.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("fsys: write %q: %w", f.file.Name(), err)
	}
	return n, nil
}
