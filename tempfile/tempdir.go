package tempfile

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// tempDirName is the subdirectory used under the home and working
// directories when no system temp directory is usable.
const tempDirName = ".pagestream"

var (
	diskPreferredDir string
	memoryAllowedDir string
	dirDiscoveryOnce sync.Once
)

// GetTempDir returns the directory new backing files should be created in.
// A usable dir is returned unchanged. Otherwise the best candidate for the
// preference is returned; the candidates are computed once per process.
//
// With preferDiskBacked set, directories that are traditionally on disk
// (such as /var/tmp) are tried before os.TempDir, which is often tmpfs.
// Scrollback can grow large, so keeping it out of RAM is usually preferred.
func GetTempDir(dir string, preferDiskBacked bool) string {
	if dir != "" && isDirectoryUsable(dir) {
		return dir
	}

	dirDiscoveryOnce.Do(func() {
		diskPreferredDir = findBestDirectory(buildCandidateList(true))
		memoryAllowedDir = findBestDirectory(buildCandidateList(false))
	})

	if preferDiskBacked {
		return diskPreferredDir
	}
	return memoryAllowedDir
}

// findBestDirectory returns the first usable candidate, or os.TempDir.
func findBestDirectory(candidates []string) string {
	for _, candidate := range candidates {
		if isDirectoryUsable(candidate) {
			return candidate
		}
	}
	return os.TempDir()
}

// buildCandidateList returns candidate directories in priority order.
func buildCandidateList(preferDiskBacked bool) []string {
	var candidates []string
	if preferDiskBacked {
		candidates = append(candidates, buildDiskPreferredCandidates()...)
	}
	candidates = append(candidates, os.TempDir())
	return append(candidates, buildAdditionalFallbacks()...)
}

func buildDiskPreferredCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/var/tmp", "/private/var/tmp"}
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris":
		return []string{"/var/tmp"}
	default:
		return nil
	}
}

// buildAdditionalFallbacks returns private subdirectories of the home and
// working directories.
func buildAdditionalFallbacks() []string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, tempDirName))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, tempDirName))
	}
	return candidates
}

// isDirectoryUsable reports whether dir is an existing directory or does
// not exist yet and may be created. Writability is only checked when a
// file is actually created.
func isDirectoryUsable(dir string) bool {
	stat, err := os.Stat(dir)
	if err != nil {
		return os.IsNotExist(err)
	}
	return stat.IsDir()
}
