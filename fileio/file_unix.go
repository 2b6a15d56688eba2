//go:build unix

package fileio

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// File is a Handle backed by an operating system file descriptor.
type File struct {
	f  *os.File
	fd int
}

// NewFile returns a Handle for f. The caller keeps ownership of f.
func NewFile(f *os.File) *File {
	return &File{f: f, fd: int(f.Fd())}
}

func (r *File) Pread(p []byte, off int64) (int, error) {
	n, err := unix.Pread(r.fd, p, off)
	runtime.KeepAlive(r.f)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *File) Pwrite(p []byte, off int64) (int, error) {
	n, err := unix.Pwrite(r.fd, p, off)
	runtime.KeepAlive(r.f)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *File) Ftruncate(size int64) error {
	err := unix.Ftruncate(r.fd, size)
	runtime.KeepAlive(r.f)
	return err
}

// Name returns the name of the underlying file.
func (r *File) Name() string {
	return r.f.Name()
}

// Close closes the underlying file.
func (r *File) Close() error {
	return r.f.Close()
}
