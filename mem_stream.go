package pagestream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// MemStream is a Stream held entirely in memory.
// It evicts in pages exactly like FileStream, so the two can be swapped
// freely; only the retained window [Tail, Head) is kept.
type MemStream struct {
	log     *slog.Logger
	metrics *streamMetrics

	data   []byte // bytes [tail, head)
	tail   int64
	page   int64
	closed bool
}

var _ Stream = (*MemStream)(nil)

// NewMem returns an empty MemStream anchored at config.BaseOffset.
// Storage related fields of config are ignored.
func NewMem(config *Config) (*MemStream, error) {
	c := mergeConfig(config)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &MemStream{
		log:     c.logger(),
		metrics: c.Metrics.forStream(c.Name),
		tail:    c.BaseOffset,
		page:    c.BaseOffset,
	}, nil
}

func (m *MemStream) head() int64 {
	return m.tail + int64(len(m.data))
}

func (m *MemStream) Append(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	m.data = append(m.data, p...)
	m.metrics.appended(len(p))
	m.metrics.retained(m.tail, m.head())
	return len(p), nil
}

func (m *MemStream) Read(off int64, p []byte) error {
	if m.closed {
		return ErrClosed
	}
	if off < m.tail {
		m.metrics.evicted()
		return newRangeError("read", off, len(p), m.tail, m.head(), ErrEvicted)
	}
	if off+int64(len(p)) > m.head() {
		return newRangeError("read", off, len(p), m.tail, m.head(), ErrOutOfRange)
	}
	copy(p, m.data[off-m.tail:])
	return nil
}

func (m *MemStream) Truncate(off int64) error {
	if m.closed {
		return ErrClosed
	}
	if off < 0 || off > m.head() {
		return fmt.Errorf("%w: truncate to %d with head at %d", ErrInvalidOffset, off, m.head())
	}
	regime := regimeCurrent
	switch {
	case off < m.tail:
		regime = regimeEvicted
		m.data = m.data[:0]
		m.tail, m.page = off, off
	case off < m.page:
		regime = regimePrevious
		m.data = m.data[:off-m.tail]
		m.page = m.tail
	default:
		m.data = m.data[:off-m.tail]
	}
	m.metrics.truncated(regime)
	m.metrics.retained(m.tail, m.head())
	return nil
}

func (m *MemStream) NewPage() error {
	if m.closed {
		return ErrClosed
	}
	head := m.head()
	// drop the evicted page, copying so its memory can be reclaimed
	m.data = append([]byte(nil), m.data[m.page-m.tail:]...)
	m.tail, m.page = m.page, head
	m.metrics.page()
	m.metrics.retained(m.tail, head)
	m.log.Debug("new page", slog.Int64("page", m.page), slog.Int64("tail", m.tail))
	return nil
}

func (m *MemStream) Head() int64 {
	return m.head()
}

func (m *MemStream) Tail() int64 {
	return m.tail
}

func (m *MemStream) PageStart() int64 {
	return m.page
}

// WriteContents writes [off, Head) to w in one call. ctx is only checked
// before writing.
func (m *MemStream) WriteContents(ctx context.Context, w io.Writer, off int64) error {
	if m.closed {
		return ErrClosed
	}
	if off < m.tail {
		m.metrics.evicted()
		return newRangeError("write contents", off, 0, m.tail, m.head(), ErrEvicted)
	}
	if off > m.head() {
		return newRangeError("write contents", off, 0, m.tail, m.head(), ErrOutOfRange)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	n, err := w.Write(m.data[off-m.tail:])
	m.metrics.exported(int64(n))
	return err
}

func (m *MemStream) Reset(off int64) error {
	if m.closed {
		return ErrClosed
	}
	if off < 0 {
		return fmt.Errorf("%w: reset to %d", ErrInvalidOffset, off)
	}
	m.data = nil
	m.tail, m.page = off, off
	m.metrics.reset()
	m.metrics.retained(off, off)
	return nil
}

// Close drops the retained data.
func (m *MemStream) Close() error {
	m.closed = true
	m.data = nil
	return nil
}
