// Package tempfile allocates the private temporary files that back a
// stream. Files are created lazily through a Factory, owned by exactly one
// caller, and removed from disk when closed. An in-memory Factory is
// provided for tests and for callers that must avoid the filesystem.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/lanrat/pagestream/fileio"
)

// DefaultPrefix is the filename prefix used when Disk.Prefix is empty.
var DefaultPrefix = fmt.Sprintf("pagestream_%d_", os.Getpid())

// Disk is a Factory that creates files on the local filesystem.
type Disk struct {
	Dir              string // empty to pick one with GetTempDir
	Prefix           string // filename prefix, DefaultPrefix when empty
	PreferDiskBacked bool   // prefer disk backed directories over tmpfs
	// Unlink removes the directory entry right after creation so the
	// space is reclaimed by the OS even if the process dies. Ignored on
	// platforms that cannot delete open files.
	Unlink bool
}

// New returns a Disk factory for dir.
func New(dir string, preferDiskBacked bool) *Disk {
	return &Disk{
		Dir:              dir,
		PreferDiskBacked: preferDiskBacked,
		Unlink:           true,
	}
}

// Create makes a new empty file.
func (d *Disk) Create() (BackingFile, error) {
	dir := GetTempDir(d.Dir, d.PreferDiskBacked)
	prefix := d.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	created, err := ensureDir(dir)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, prefix)
	if err != nil {
		if created {
			releaseDir(dir)
		}
		return nil, err
	}
	df := &diskFile{
		File:    fileio.NewFile(f),
		name:    f.Name(),
		dir:     dir,
		ownsDir: created,
	}
	if d.Unlink && runtime.GOOS != "windows" {
		if err := os.Remove(df.name); err != nil {
			_ = df.Close()
			return nil, err
		}
		df.unlinked = true
	}
	return df, nil
}

// diskFile deletes itself on Close.
type diskFile struct {
	*fileio.File
	name     string
	dir      string
	ownsDir  bool
	unlinked bool
	closed   bool
}

func (f *diskFile) Name() string {
	return f.name
}

func (f *diskFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	err := f.File.Close()
	if !f.unlinked {
		if rerr := os.Remove(f.name); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = errors.Join(err, rerr)
		}
	}
	if f.ownsDir {
		releaseDir(f.dir)
	}
	return err
}

// Directories made by this package under a fallback location are
// reference counted and removed once their last file is closed.
var (
	dirRefsMu sync.Mutex
	dirRefs   = make(map[string]int)
)

// ensureDir creates dir if needed and reports whether the caller holds a
// reference on a directory owned by this package.
func ensureDir(dir string) (bool, error) {
	dirRefsMu.Lock()
	defer dirRefsMu.Unlock()

	if _, ok := dirRefs[dir]; ok {
		dirRefs[dir]++
		return true, nil
	}
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, err
	}
	if filepath.Base(dir) != tempDirName {
		// never clean up directories the caller asked for
		return false, nil
	}
	dirRefs[dir] = 1
	return true, nil
}

func releaseDir(dir string) {
	dirRefsMu.Lock()
	defer dirRefsMu.Unlock()

	dirRefs[dir]--
	if dirRefs[dir] > 0 {
		return
	}
	delete(dirRefs, dir)
	// fails harmlessly if something else put files in it
	_ = os.Remove(dir)
}
