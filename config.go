package pagestream

import (
	"log/slog"

	"github.com/lanrat/pagestream/tempfile"
)

// Config holds configuration settings for a stream
type Config struct {
	Name             string `yaml:"name"`               // label used in logs and metrics
	BaseOffset       int64  `yaml:"base_offset"`        // logical offset of the first byte
	PageSize         int64  `yaml:"page_size"`          // page size used by Bounded
	TempFilesDir     string `yaml:"temp_files_dir"`     // empty to pick one, ex: /var/tmp
	FilenamePrefix   string `yaml:"filename_prefix"`    // filename prefix for backing files
	PreferDiskBacked bool   `yaml:"prefer_disk_backed"` // avoid tmpfs backed temp directories
	KeepNames        bool   `yaml:"keep_names"`         // do not unlink backing files on creation

	// Factory overrides the backing file allocation. Nil builds a
	// tempfile.Disk from the fields above.
	Factory tempfile.Factory `yaml:"-"`
	Logger  *slog.Logger     `yaml:"-"`
	Metrics *Metrics         `yaml:"-"`
}

// DefaultConfig returns the default configuration options used if none provided
func DefaultConfig() *Config {
	return &Config{
		Name:             "default",
		BaseOffset:       0,
		PageSize:         1 << 20, // 1MB
		TempFilesDir:     "",
		FilenamePrefix:   tempfile.DefaultPrefix,
		PreferDiskBacked: true,
	}
}

// mergeConfig takes a provided config and replaces any values not set with the defaults
func mergeConfig(c *Config) *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	merged := *c
	if merged.Name == "" {
		merged.Name = d.Name
	}
	if merged.PageSize == 0 {
		merged.PageSize = d.PageSize
	}
	if merged.FilenamePrefix == "" {
		merged.FilenamePrefix = d.FilenamePrefix
	}
	// skipping TempFilesDir as it is the empty string
	return &merged
}

// Validate checks the configuration for values no stream can work with.
func (c *Config) Validate() error {
	if c.BaseOffset < 0 {
		return &ConfigError{Field: "BaseOffset", Value: c.BaseOffset, Reason: "must not be negative"}
	}
	if c.PageSize < 0 {
		return &ConfigError{Field: "PageSize", Value: c.PageSize, Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) factory() tempfile.Factory {
	if c.Factory != nil {
		return c.Factory
	}
	return &tempfile.Disk{
		Dir:              c.TempFilesDir,
		Prefix:           c.FilenamePrefix,
		PreferDiskBacked: c.PreferDiskBacked,
		Unlink:           !c.KeepNames,
	}
}

func (c *Config) logger() *slog.Logger {
	l := c.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return l.With(slog.String("stream", c.Name))
}
