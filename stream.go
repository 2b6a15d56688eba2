// Package pagestream implements a bounded, disk-backed, append-only byte
// stream.
//
// Bytes are addressed by an absolute logical offset that only grows, except
// when the stream is explicitly truncated. The retained window is stored in
// at most two generations ("pages"). Rotating to a new page evicts the
// oldest one in O(1) by recycling its file, so disk usage stays bounded by
// the two most recent pages no matter how much has been appended. This
// suits scrollback-style history where old data may be dropped a page at a
// time.
//
// A Stream has a single owner and is not safe for concurrent use.
package pagestream

import (
	"context"
	"io"
)

// Stream is an append-only byte stream with page granular eviction.
// FileStream and MemStream are the two implementations.
type Stream interface {
	// Append writes p at Head and advances Head by len(p).
	// It returns the number of bytes actually stored.
	Append(p []byte) (int, error)

	// Read fills p with the bytes at [off, off+len(p)).
	// The range must lie inside [Tail, Head).
	Read(off int64, p []byte) error

	// Truncate discards everything at or after off and moves Head to off.
	Truncate(off int64) error

	// NewPage starts a new generation at Head and evicts the oldest one.
	NewPage() error

	// Head returns the offset one past the last byte written.
	Head() int64

	// Tail returns the oldest offset that can still be read.
	Tail() int64

	// PageStart returns the offset at which the current page begins.
	PageStart() int64

	// WriteContents streams everything from off up to Head into w.
	WriteContents(ctx context.Context, w io.Writer, off int64) error

	// Reset discards all data and re-anchors the stream at off.
	Reset(off int64) error

	// Close releases the storage backing the stream.
	io.Closer
}
