package tempfile

import (
	"io"

	"github.com/lanrat/pagestream/fileio"
)

// BackingFile is a private, exclusively owned temporary file.
// It exposes positioned I/O through fileio.Handle.
type BackingFile interface {
	fileio.Handle

	// Close releases the handle and deletes the file from disk.
	// Calling Close more than once is a no-op.
	io.Closer

	// Name returns a description of the file, usually its path.
	Name() string
}

// Factory allocates fresh backing files.
// Implementations choose where the files live and how they are named;
// the caller only relies on the returned file being empty and private.
type Factory interface {
	Create() (BackingFile, error)
}

// FactoryFunc adapts an ordinary function to the Factory interface.
type FactoryFunc func() (BackingFile, error)

// Create calls f.
func (f FactoryFunc) Create() (BackingFile, error) {
	return f()
}
