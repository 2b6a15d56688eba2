package pagestream

import (
	"errors"
	"fmt"

	"github.com/lanrat/pagestream/fileio"
)

var (
	// ErrEvicted is returned when the requested offset precedes Tail.
	ErrEvicted = errors.New("pagestream: offset has been evicted")
	// ErrOutOfRange is returned when the requested range extends past Head.
	ErrOutOfRange = errors.New("pagestream: range extends past head")
	// ErrShortRead is returned when the backing storage returned fewer bytes
	// than the retained window promises.
	ErrShortRead = errors.New("pagestream: short read")
	// ErrInvalidOffset is returned for negative offsets or a truncation
	// past Head.
	ErrInvalidOffset = errors.New("pagestream: invalid offset")
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("pagestream: stream is closed")
	// ErrCanceled is returned by WriteContents when its context is done.
	ErrCanceled = fileio.ErrCanceled
)

// RangeError describes a request for bytes outside the retained window.
type RangeError struct {
	// Op is the operation that was refused
	Op string
	// Offset and Length describe the requested range
	Offset int64
	Length int
	// Tail and Head are the window bounds at the time of the request
	Tail int64
	Head int64
	// Err is one of ErrEvicted, ErrOutOfRange or ErrShortRead
	Err error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s [%d, +%d) outside [%d, %d): %v", e.Op, e.Offset, e.Length, e.Tail, e.Head, e.Err)
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

func newRangeError(op string, off int64, n int, tail, head int64, err error) error {
	return &RangeError{Op: op, Offset: off, Length: n, Tail: tail, Head: head, Err: err}
}

// NewDiskError wraps an I/O error from the backing storage
func NewDiskError(err error, operation, path string) error {
	if path != "" {
		return fmt.Errorf("disk error during %s on %s: %w", operation, path, err)
	}
	return fmt.Errorf("disk error during %s: %w", operation, err)
}

// ConfigError represents an error in configuration parameters
type ConfigError struct {
	// Field is the name of the configuration field that's invalid
	Field string
	// Value is the invalid value provided
	Value interface{}
	// Reason explains why the value is invalid
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %s", e.Field, e.Value, e.Reason)
}
