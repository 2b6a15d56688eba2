package pagestream

import (
	"fmt"
)

// Bounded rotates the wrapped Stream to a new page whenever the current
// page reaches PageSize bytes, bounding retained data to roughly two pages
// plus the largest single append.
type Bounded struct {
	Stream
	PageSize int64
}

// NewBounded wraps s so that it rotates every pageSize bytes.
func NewBounded(s Stream, pageSize int64) (*Bounded, error) {
	if pageSize <= 0 {
		return nil, &ConfigError{Field: "PageSize", Value: pageSize, Reason: "must be positive"}
	}
	return &Bounded{Stream: s, PageSize: pageSize}, nil
}

// Append appends p and starts a new page if the current one is full.
func (b *Bounded) Append(p []byte) (int, error) {
	n, err := b.Stream.Append(p)
	if err != nil {
		return n, err
	}
	if b.Head()-b.PageStart() >= b.PageSize {
		if err := b.NewPage(); err != nil {
			return n, fmt.Errorf("rotate: %w", err)
		}
	}
	return n, nil
}
