// Package fileio implements positioned file I/O primitives that absorb
// transient operating system failures.
//
// Every primitive works on a raw Handle and an explicit offset, so no
// implicit file cursor is shared between callers. Interrupted system calls
// are retried, a write rejected with EINVAL is recovered once by extending
// the file, and everything else is returned to the caller together with
// the progress made so far.
package fileio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// CopyBufferSize is the chunk size used by CopyTo.
var CopyBufferSize = 1 << 16 // 64k

var (
	// ErrNoHandle is returned when data is written to a nil handle.
	ErrNoHandle = errors.New("fileio: write to absent handle")
	// ErrCanceled is returned by CopyTo when its context is done.
	ErrCanceled = errors.New("fileio: copy canceled")
)

// Handle is a raw positioned file handle.
// Implementations must return errors unretried so that the primitives in
// this package can classify them. A read at or past end of file returns
// zero bytes and a nil error.
type Handle interface {
	Pread(p []byte, off int64) (int, error)
	Pwrite(p []byte, off int64) (int, error)
	Ftruncate(size int64) error
}

func interrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}

func outOfRange(err error) bool {
	return errors.Is(err, syscall.EINVAL)
}

// ReadAt reads up to len(p) bytes at off, retrying interrupted reads.
// It returns the number of bytes read, which is less than len(p) at end of
// file. A nil handle reads nothing.
func ReadAt(h Handle, p []byte, off int64) (int, error) {
	if h == nil {
		return 0, nil
	}
	total := 0
	for total < len(p) {
		n, err := h.Pread(p[total:], off)
		if err != nil {
			if interrupted(err) {
				continue
			}
			return total, err
		}
		if n <= 0 {
			break
		}
		total += n
		off += int64(n)
	}
	return total, nil
}

// WriteAt writes p at off, retrying interrupted writes.
//
// If the write is rejected as out of range, earlier writes probably failed
// and off now lies past the end of the file. The file is extended to off
// and the write retried once; this recovers from a full temp directory
// once space is available again.
func WriteAt(h Handle, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if h == nil {
		return 0, ErrNoHandle
	}
	total := 0
	extended := false
	for total < len(p) {
		n, err := h.Pwrite(p[total:], off)
		if err != nil {
			if interrupted(err) {
				continue
			}
			if outOfRange(err) && !extended {
				extended = true
				if terr := Truncate(h, off); terr != nil {
					return total, fmt.Errorf("extend to %d: %w", off, terr)
				}
				continue
			}
			return total, err
		}
		if n <= 0 {
			return total, io.ErrShortWrite
		}
		total += n
		off += int64(n)
	}
	return total, nil
}

// Truncate sets the length of the file, retrying interrupted calls.
// A nil handle is left alone.
func Truncate(h Handle, size int64) error {
	if h == nil {
		return nil
	}
	for {
		err := h.Ftruncate(size)
		if err != nil && interrupted(err) {
			continue
		}
		return err
	}
}

// CopyTo streams n bytes starting at off from h to w, or everything up to
// end of file when n is negative. The context is checked between chunks.
// A nil handle copies nothing.
func CopyTo(ctx context.Context, h Handle, w io.Writer, off, n int64) (int64, error) {
	if h == nil || n == 0 {
		return 0, nil
	}
	buf := make([]byte, CopyBufferSize)
	var written int64
	for n < 0 || written < n {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		chunk := buf
		if n >= 0 && n-written < int64(len(chunk)) {
			chunk = chunk[:n-written]
		}
		nr, rerr := ReadAt(h, chunk, off+written)
		if nr > 0 {
			nw, werr := w.Write(chunk[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			return written, rerr
		}
		if nr < len(chunk) {
			break
		}
	}
	return written, nil
}
