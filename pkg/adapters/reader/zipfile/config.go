package zipfile

import (
	"fmt"
	"unicode/utf8"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

const defaultMaxArchiveMB = 512

// Config holds zip reader options resolved from a reader spec.
type Config struct {
	Path string
	// Delimiter zero means "pick by part extension" at read time.
	Delimiter rune
	// Limit truncates the merged read after this many data rows.
	Limit int
	// MaxArchiveMB bounds both the archive on disk and its declared
	// uncompressed size.
	MaxArchiveMB int
}

// FromMap builds the config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	path, ok := options["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required for the zip reader")
	}
	cfg.Path = path

	if raw, ok := options["delimiter"]; ok {
		s, ok := raw.(string)
		if !ok || utf8.RuneCountInString(s) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character")
		}
		r, _ := utf8.DecodeRuneInString(s)
		cfg.Delimiter = r
	}

	if cfg.Limit, err = reader.IntOption(options, "limit", 0); err != nil {
		return nil, err
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	if cfg.MaxArchiveMB, err = reader.IntOption(options, "max_archive_mb", defaultMaxArchiveMB); err != nil {
		return nil, err
	}
	if cfg.MaxArchiveMB <= 0 {
		return nil, fmt.Errorf("max_archive_mb must be positive")
	}

	return cfg, nil
}
