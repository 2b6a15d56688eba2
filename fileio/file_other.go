//go:build !unix

package fileio

import (
	"errors"
	"io"
	"os"
)

// File is a Handle backed by an *os.File.
type File struct {
	f *os.File
}

// NewFile returns a Handle for f. The caller keeps ownership of f.
func NewFile(f *os.File) *File {
	return &File{f: f}
}

func (r *File) Pread(p []byte, off int64) (int, error) {
	n, err := r.f.ReadAt(p, off)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func (r *File) Pwrite(p []byte, off int64) (int, error) {
	return r.f.WriteAt(p, off)
}

func (r *File) Ftruncate(size int64) error {
	return r.f.Truncate(size)
}

// Name returns the name of the underlying file.
func (r *File) Name() string {
	return r.f.Name()
}

// Close closes the underlying file.
func (r *File) Close() error {
	return r.f.Close()
}
