package tempfile

import (
	"fmt"
	"sync"
	"syscall"
)

// Op names a MemFile operation for fault injection.
type Op int

// Operations that can be made to fail.
const (
	OpRead Op = iota
	OpWrite
	OpTruncate
)

// MemFile is an in-memory BackingFile.
// It behaves like a regular file: writes past the end are rejected with
// EINVAL when Strict is set (emulating a file that could not be extended),
// otherwise they leave a zero filled hole. Faults can be injected per
// operation to exercise retry and error paths.
type MemFile struct {
	name   string
	data   []byte
	closed bool
	faults map[Op][]error

	// Strict rejects writes that start past the end of the file.
	Strict bool
	// MaxWrite caps the bytes accepted by a single Pwrite, 0 for no cap.
	MaxWrite int

	onClose func()
}

// NewMemFile returns an empty MemFile.
func NewMemFile(name string) *MemFile {
	return &MemFile{name: name, faults: make(map[Op][]error)}
}

// Inject makes the next count calls of op fail with err before normal
// behaviour resumes.
func (m *MemFile) Inject(op Op, err error, count int) {
	for i := 0; i < count; i++ {
		m.faults[op] = append(m.faults[op], err)
	}
}

func (m *MemFile) fault(op Op) error {
	if m.closed {
		return syscall.EBADF
	}
	errs := m.faults[op]
	if len(errs) == 0 {
		return nil
	}
	m.faults[op] = errs[1:]
	return errs[0]
}

func (m *MemFile) Pread(p []byte, off int64) (int, error) {
	if err := m.fault(OpRead); err != nil {
		return 0, err
	}
	if off >= int64(len(m.data)) {
		return 0, nil
	}
	return copy(p, m.data[off:]), nil
}

func (m *MemFile) Pwrite(p []byte, off int64) (int, error) {
	if err := m.fault(OpWrite); err != nil {
		return 0, err
	}
	if m.Strict && off > int64(len(m.data)) {
		return 0, syscall.EINVAL
	}
	if m.MaxWrite > 0 && len(p) > m.MaxWrite {
		p = p[:m.MaxWrite]
	}
	m.grow(off + int64(len(p)))
	return copy(m.data[off:], p), nil
}

func (m *MemFile) Ftruncate(size int64) error {
	if err := m.fault(OpTruncate); err != nil {
		return err
	}
	if size < 0 {
		return syscall.EINVAL
	}
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	m.grow(size)
	return nil
}

func (m *MemFile) grow(size int64) {
	if size <= int64(len(m.data)) {
		return
	}
	m.data = append(m.data, make([]byte, size-int64(len(m.data)))...)
}

// Len returns the physical length of the file.
func (m *MemFile) Len() int {
	return len(m.data)
}

// Bytes returns the file contents. The slice aliases the file.
func (m *MemFile) Bytes() []byte {
	return m.data
}

func (m *MemFile) Name() string {
	return m.name
}

// Closed reports whether Close has been called.
func (m *MemFile) Closed() bool {
	return m.closed
}

// Close releases the file contents.
func (m *MemFile) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.data = nil
	if m.onClose != nil {
		m.onClose()
	}
	return nil
}

// MockFactory is an in-memory Factory. It keeps every file it creates so
// tests can inspect them and check that none leak.
type MockFactory struct {
	mu    sync.Mutex
	files []*MemFile
	open  int

	// Err, if set, is returned by Create instead of a file.
	Err error
	// Strict is copied to every created MemFile.
	Strict bool
}

// Mock returns an empty MockFactory.
func Mock() *MockFactory {
	return &MockFactory{}
}

// Create returns a new MemFile.
func (f *MockFactory) Create() (BackingFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	m := NewMemFile(fmt.Sprintf("mem:%d", len(f.files)))
	m.Strict = f.Strict
	m.onClose = func() {
		f.mu.Lock()
		f.open--
		f.mu.Unlock()
	}
	f.files = append(f.files, m)
	f.open++
	return m, nil
}

// Files returns every file created so far, in creation order.
func (f *MockFactory) Files() []*MemFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MemFile(nil), f.files...)
}

// Open returns the number of created files that are not closed yet.
func (f *MockFactory) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
