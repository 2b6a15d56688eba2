package pagestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lanrat/pagestream/fileio"
	"github.com/lanrat/pagestream/tempfile"
)

// FileStream is a Stream stored in two temporary files, one per generation.
//
// Slot 0 holds the current page and receives every append; slot 1 holds
// the previous page. offset[i] is the logical offset of byte 0 of slot i's
// file, and offset[1] <= offset[0] <= head always holds. Files are created
// on the first append and deleted by Close.
type FileStream struct {
	config  Config
	factory tempfile.Factory
	log     *slog.Logger
	metrics *streamMetrics

	file   [2]tempfile.BackingFile
	offset [2]int64
	head   int64
	closed bool
}

var _ Stream = (*FileStream)(nil)

// New returns an empty FileStream anchored at config.BaseOffset.
// config can be nil to use the defaults, or only set the non-default values
// desired. No file is created until the first Append.
func New(config *Config) (*FileStream, error) {
	c := mergeConfig(config)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := &FileStream{
		config:  *c,
		factory: c.factory(),
		log:     c.logger(),
		metrics: c.Metrics.forStream(c.Name),
	}
	s.head, s.offset[0], s.offset[1] = c.BaseOffset, c.BaseOffset, c.BaseOffset
	return s, nil
}

// handle returns slot i as a fileio.Handle, nil when it has no file yet.
func (s *FileStream) handle(i int) fileio.Handle {
	if s.file[i] == nil {
		return nil
	}
	return s.file[i]
}

func (s *FileStream) name(i int) string {
	if s.file[i] == nil {
		return ""
	}
	return s.file[i].Name()
}

func (s *FileStream) swap() {
	s.file[0], s.file[1] = s.file[1], s.file[0]
}

// shrink sets the length of slot i's file.
func (s *FileStream) shrink(i int, size int64) error {
	if err := fileio.Truncate(s.handle(i), size); err != nil {
		return NewDiskError(err, "truncate", s.name(i))
	}
	return nil
}

func (s *FileStream) ensureCurrent() error {
	if s.file[0] != nil {
		return nil
	}
	f, err := s.factory.Create()
	if err != nil {
		return NewDiskError(err, "create", "")
	}
	s.file[0] = f
	s.log.Debug("created backing file", slog.String("file", f.Name()))
	return nil
}

// Append writes p at Head.
//
// Head always advances by len(p) once the write has been attempted, so the
// logical offsets of later appends are not shifted by a failed write. If
// fewer bytes were stored the count is returned with an error and the
// missing bytes read back as a failure.
func (s *FileStream) Append(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.ensureCurrent(); err != nil {
		return 0, err
	}

	n, err := fileio.WriteAt(s.file[0], p, s.head-s.offset[0])
	s.head += int64(len(p))
	s.metrics.appended(n)
	s.metrics.retained(s.offset[1], s.head)
	if err != nil {
		s.metrics.shortWrite()
		s.log.Warn("short write",
			slog.Int("requested", len(p)),
			slog.Int("written", n),
			slog.Int64("head", s.head),
			slog.Any("error", err))
		return n, NewDiskError(err, "append", s.name(0))
	}
	return n, nil
}

// Read fills p with the bytes at [off, off+len(p)).
// It fails with ErrEvicted when off precedes Tail and with ErrOutOfRange
// when the range extends past Head.
func (s *FileStream) Read(off int64, p []byte) error {
	if s.closed {
		return ErrClosed
	}
	if off < s.offset[1] {
		s.metrics.evicted()
		return newRangeError("read", off, len(p), s.offset[1], s.head, ErrEvicted)
	}
	if off+int64(len(p)) > s.head {
		return newRangeError("read", off, len(p), s.offset[1], s.head, ErrOutOfRange)
	}
	start, want := off, len(p)

	if off < s.offset[0] {
		// slot 1 may hold stale bytes past offset[0], never read them
		prefix := p[:min(int64(len(p)), s.offset[0]-off)]
		n, err := fileio.ReadAt(s.handle(1), prefix, off-s.offset[1])
		if err != nil {
			return NewDiskError(err, "read", s.name(1))
		}
		off += int64(n)
		p = p[n:]
		if len(p) == 0 {
			return nil
		}
		if n < len(prefix) {
			return newRangeError("read", start, want, s.offset[1], s.head, ErrShortRead)
		}
	}

	n, err := fileio.ReadAt(s.handle(0), p, off-s.offset[0])
	if err != nil {
		return NewDiskError(err, "read", s.name(0))
	}
	if n < len(p) {
		return newRangeError("read", start, want, s.offset[1], s.head, ErrShortRead)
	}
	return nil
}

// Truncate discards everything at or after off and sets Head to off.
//
// When off falls inside the previous page, the current page is emptied and
// the previous page's file becomes current again. That file is not shrunk:
// bytes past the new Head stay on disk until later appends overwrite them,
// and nothing past Head is ever read. When off precedes Tail, both pages are
// emptied and the stream restarts at off.
func (s *FileStream) Truncate(off int64) error {
	if s.closed {
		return ErrClosed
	}
	if off < 0 || off > s.head {
		return fmt.Errorf("%w: truncate to %d with head at %d", ErrInvalidOffset, off, s.head)
	}

	var err error
	regime := regimeCurrent
	if off < s.offset[1] {
		regime = regimeEvicted
		err = errors.Join(err, s.shrink(1, 0))
		s.offset[1] = off
	}
	if off < s.offset[0] {
		if regime == regimeCurrent {
			regime = regimePrevious
		}
		err = errors.Join(err, s.shrink(0, 0))
		s.offset[0] = s.offset[1]
		s.swap()
	} else {
		err = errors.Join(err, s.shrink(0, off-s.offset[0]))
	}
	s.head = off

	s.metrics.truncated(regime)
	s.metrics.retained(s.offset[1], s.head)
	s.log.Debug("truncated",
		slog.String("regime", regime),
		slog.Int64("head", s.head),
		slog.Int64("page", s.offset[0]),
		slog.Int64("tail", s.offset[1]))
	return err
}

// NewPage retires the current page and starts a new one at Head. The page
// before the previous one is evicted and its file is recycled, emptied, as
// the new current page.
func (s *FileStream) NewPage() error {
	if s.closed {
		return ErrClosed
	}
	s.offset[1] = s.offset[0]
	s.offset[0] = s.head
	s.swap()
	err := s.shrink(0, 0)

	s.metrics.page()
	s.metrics.retained(s.offset[1], s.head)
	s.log.Debug("new page", slog.Int64("page", s.offset[0]), slog.Int64("tail", s.offset[1]))
	return err
}

// Head returns the offset one past the last byte written.
func (s *FileStream) Head() int64 {
	return s.head
}

// Tail returns the oldest readable offset.
func (s *FileStream) Tail() int64 {
	return s.offset[1]
}

// PageStart returns the offset at which the current page begins.
func (s *FileStream) PageStart() int64 {
	return s.offset[0]
}

// WriteContents copies the bytes in [off, Head) to w, previous page first.
// Only the export honours ctx; a cancelled export fails with an error
// matching ErrCanceled after having written a prefix of the range.
func (s *FileStream) WriteContents(ctx context.Context, w io.Writer, off int64) error {
	if s.closed {
		return ErrClosed
	}
	if off < s.offset[1] {
		s.metrics.evicted()
		return newRangeError("write contents", off, 0, s.offset[1], s.head, ErrEvicted)
	}
	if off > s.head {
		return newRangeError("write contents", off, 0, s.offset[1], s.head, ErrOutOfRange)
	}

	if off < s.offset[0] {
		want := s.offset[0] - off
		n, err := fileio.CopyTo(ctx, s.handle(1), w, off-s.offset[1], want)
		s.metrics.exported(n)
		if err != nil {
			return s.exportError(err, 1)
		}
		if n < want {
			return newRangeError("write contents", off, 0, s.offset[1], s.head, ErrShortRead)
		}
		off = s.offset[0]
	}

	want := s.head - off
	n, err := fileio.CopyTo(ctx, s.handle(0), w, off-s.offset[0], want)
	s.metrics.exported(n)
	if err != nil {
		return s.exportError(err, 0)
	}
	if n < want {
		return newRangeError("write contents", off, 0, s.offset[1], s.head, ErrShortRead)
	}
	return nil
}

func (s *FileStream) exportError(err error, slot int) error {
	if errors.Is(err, ErrCanceled) {
		return err
	}
	return fmt.Errorf("write contents from %s: %w", s.name(slot), err)
}

// Reset empties both pages and anchors Head, PageStart and Tail at off.
func (s *FileStream) Reset(off int64) error {
	if s.closed {
		return ErrClosed
	}
	if off < 0 {
		return fmt.Errorf("%w: reset to %d", ErrInvalidOffset, off)
	}
	err := errors.Join(s.shrink(0, 0), s.shrink(1, 0))
	s.head, s.offset[0], s.offset[1] = off, off, off

	s.metrics.reset()
	s.metrics.retained(s.offset[1], s.head)
	s.log.Debug("reset", slog.Int64("head", off))
	return err
}

// Close deletes the backing files. The stream cannot be used afterwards;
// closing it again does nothing.
func (s *FileStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	for i := range s.file {
		if s.file[i] != nil {
			err = errors.Join(err, s.file[i].Close())
			s.file[i] = nil
		}
	}
	return err
}
