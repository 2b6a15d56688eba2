package fileio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/lanrat/pagestream/fileio"
)

// scriptedHandle is an in-memory Handle that fails calls according to a
// script before falling through to the real behaviour.
type scriptedHandle struct {
	data      []byte
	readErrs  []error
	writeErrs []error
	truncErrs []error
	maxWrite  int // bytes accepted per Pwrite, 0 for unlimited
	zeroWrite bool
	truncates []int64
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (h *scriptedHandle) Pread(p []byte, off int64) (int, error) {
	if err := pop(&h.readErrs); err != nil {
		return 0, err
	}
	if off >= int64(len(h.data)) {
		return 0, nil
	}
	// return at most 3 bytes per call to exercise the read loop
	n := copy(p[:min(len(p), 3)], h.data[off:])
	return n, nil
}

func (h *scriptedHandle) Pwrite(p []byte, off int64) (int, error) {
	if err := pop(&h.writeErrs); err != nil {
		return 0, err
	}
	if h.zeroWrite {
		return 0, nil
	}
	if off > int64(len(h.data)) {
		return 0, syscall.EINVAL
	}
	if h.maxWrite > 0 && len(p) > h.maxWrite {
		p = p[:h.maxWrite]
	}
	end := off + int64(len(p))
	if end > int64(len(h.data)) {
		h.data = append(h.data, make([]byte, end-int64(len(h.data)))...)
	}
	copy(h.data[off:], p)
	return len(p), nil
}

func (h *scriptedHandle) Ftruncate(size int64) error {
	if err := pop(&h.truncErrs); err != nil {
		return err
	}
	h.truncates = append(h.truncates, size)
	if size <= int64(len(h.data)) {
		h.data = h.data[:size]
		return nil
	}
	h.data = append(h.data, make([]byte, size-int64(len(h.data)))...)
	return nil
}

func TestReadAtRetriesInterrupted(t *testing.T) {
	h := &scriptedHandle{
		data:     []byte("The quick brown fox"),
		readErrs: []error{syscall.EINTR, syscall.EINTR},
	}
	buf := make([]byte, 9)
	n, err := fileio.ReadAt(h, buf, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 || string(buf) != "quick bro" {
		t.Fatalf("ReadAt returned %d %q, expected 9 %q", n, buf[:n], "quick bro")
	}
}

func TestReadAtEndOfFile(t *testing.T) {
	h := &scriptedHandle{data: []byte("abcdef")}
	buf := make([]byte, 10)
	n, err := fileio.ReadAt(h, buf, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || string(buf[:n]) != "cdef" {
		t.Fatalf("ReadAt returned %d %q", n, buf[:n])
	}
	n, err = fileio.ReadAt(h, buf, 100)
	if err != nil || n != 0 {
		t.Fatalf("ReadAt past end returned %d, %v", n, err)
	}
}

func TestReadAtPersistentError(t *testing.T) {
	h := &scriptedHandle{
		data:     []byte("abcdef"),
		readErrs: []error{nil, syscall.EIO},
	}
	// the first call returns 3 bytes, the second one fails
	buf := make([]byte, 6)
	n, err := fileio.ReadAt(h, buf, 0)
	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("expected EIO, got %v", err)
	}
	if n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("expected partial progress of 3, got %d %q", n, buf[:n])
	}
}

func TestReadAtNilHandle(t *testing.T) {
	n, err := fileio.ReadAt(nil, make([]byte, 4), 0)
	if n != 0 || err != nil {
		t.Fatalf("ReadAt(nil) returned %d, %v", n, err)
	}
}

func TestWriteAtRetriesInterrupted(t *testing.T) {
	h := &scriptedHandle{
		writeErrs: []error{syscall.EINTR},
		maxWrite:  2,
	}
	n, err := fileio.WriteAt(h, []byte("hello"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || string(h.data) != "hello" {
		t.Fatalf("WriteAt returned %d, data %q", n, h.data)
	}
}

func TestWriteAtExtendsOnce(t *testing.T) {
	// writing at 4 into an empty file is rejected until the file is extended
	h := &scriptedHandle{}
	n, err := fileio.WriteAt(h, []byte("XY"), 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("WriteAt returned %d, expected 2", n)
	}
	if len(h.truncates) != 1 || h.truncates[0] != 4 {
		t.Fatalf("expected a single extension to 4, got %v", h.truncates)
	}
	if !bytes.Equal(h.data, []byte{0, 0, 0, 0, 'X', 'Y'}) {
		t.Fatalf("unexpected data %q", h.data)
	}
}

func TestWriteAtGivesUpAfterSecondRejection(t *testing.T) {
	h := &scriptedHandle{
		data:      []byte("abcd"),
		writeErrs: []error{syscall.EINVAL, syscall.EINVAL},
	}
	n, err := fileio.WriteAt(h, []byte("zz"), 4)
	if !errors.Is(err, syscall.EINVAL) {
		t.Fatalf("expected EINVAL, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes written, got %d", n)
	}
	if len(h.truncates) != 1 {
		t.Fatalf("expected one extension, got %d", len(h.truncates))
	}
}

func TestWriteAtZeroWrite(t *testing.T) {
	h := &scriptedHandle{zeroWrite: true}
	n, err := fileio.WriteAt(h, []byte("abc"), 0)
	if !errors.Is(err, io.ErrShortWrite) || n != 0 {
		t.Fatalf("WriteAt returned %d, %v", n, err)
	}
}

func TestWriteAtNilHandle(t *testing.T) {
	if _, err := fileio.WriteAt(nil, []byte("x"), 0); !errors.Is(err, fileio.ErrNoHandle) {
		t.Fatalf("expected ErrNoHandle, got %v", err)
	}
	if n, err := fileio.WriteAt(nil, nil, 0); n != 0 || err != nil {
		t.Fatalf("empty write to nil handle returned %d, %v", n, err)
	}
}

func TestTruncate(t *testing.T) {
	h := &scriptedHandle{
		data:      []byte("abcdef"),
		truncErrs: []error{syscall.EINTR, syscall.EINTR},
	}
	if err := fileio.Truncate(h, 2); err != nil {
		t.Fatal(err)
	}
	if string(h.data) != "ab" {
		t.Fatalf("unexpected data %q", h.data)
	}
	if err := fileio.Truncate(nil, 10); err != nil {
		t.Fatalf("Truncate(nil) returned %v", err)
	}

	h.truncErrs = []error{syscall.EBADF}
	if err := fileio.Truncate(h, 0); !errors.Is(err, syscall.EBADF) {
		t.Fatalf("expected EBADF, got %v", err)
	}
}

func TestCopyTo(t *testing.T) {
	old := fileio.CopyBufferSize
	fileio.CopyBufferSize = 4
	defer func() { fileio.CopyBufferSize = old }()

	h := &scriptedHandle{data: []byte("0123456789abcdef")}

	var out bytes.Buffer
	n, err := fileio.CopyTo(context.Background(), h, &out, 3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 13 || out.String() != "3456789abcdef" {
		t.Fatalf("CopyTo returned %d %q", n, out.String())
	}

	out.Reset()
	n, err = fileio.CopyTo(context.Background(), h, &out, 2, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 || out.String() != "2345678" {
		t.Fatalf("bounded CopyTo returned %d %q", n, out.String())
	}

	out.Reset()
	n, err = fileio.CopyTo(context.Background(), nil, &out, 0, -1)
	if n != 0 || err != nil {
		t.Fatalf("CopyTo(nil) returned %d, %v", n, err)
	}
}

func TestCopyToCanceled(t *testing.T) {
	h := &scriptedHandle{data: []byte("0123456789")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := fileio.CopyTo(ctx, h, &out, 0, -1)
	if !errors.Is(err, fileio.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("canceled copy wrote %d bytes", out.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("sink closed")
}

func TestCopyToSinkError(t *testing.T) {
	h := &scriptedHandle{data: []byte("0123456789")}
	_, err := fileio.CopyTo(context.Background(), h, failingWriter{}, 0, -1)
	if err == nil || err.Error() != "sink closed" {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "fileio_")
	if err != nil {
		t.Fatal(err)
	}
	h := fileio.NewFile(f)
	defer func() {
		if err := h.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	if filepath.Base(h.Name()) != filepath.Base(f.Name()) {
		t.Fatalf("Name returned %q", h.Name())
	}

	if _, err := fileio.WriteAt(h, []byte("hello world"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := fileio.WriteAt(h, []byte("W"), 6); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 32)
	n, err := fileio.ReadAt(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello World" {
		t.Fatalf("read back %q", buf[:n])
	}

	if err := fileio.Truncate(h, 5); err != nil {
		t.Fatal(err)
	}
	n, err = fileio.ReadAt(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("read back %q after truncate", buf[:n])
	}

	// writing past the end leaves a hole of zeros
	if _, err := fileio.WriteAt(h, []byte("!"), 7); err != nil {
		t.Fatal(err)
	}
	n, err = fileio.ReadAt(h, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], []byte("hello\x00\x00!")) {
		t.Fatalf("read back %q after sparse write", buf[:n])
	}
}
