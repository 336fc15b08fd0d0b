package csvfile

import (
	"fmt"
	"unicode/utf8"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

const defaultMaxFileMB = 512

// Config holds csv reader options resolved from a reader spec.
type Config struct {
	Path string
	// Delimiter zero means "pick by extension" at read time.
	Delimiter rune
	Header    bool
	// Limit truncates the read after this many data rows. Zero reads all.
	Limit int
	// MaxFileMB refuses files larger than this before parsing.
	MaxFileMB int
}

// FromMap builds the config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	path, ok := options["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required for the csv reader")
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

	if cfg.Header, err = reader.BoolOption(options, "header", true); err != nil {
		return nil, err
	}
	if cfg.Limit, err = reader.IntOption(options, "limit", 0); err != nil {
		return nil, err
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	if cfg.MaxFileMB, err = reader.IntOption(options, "max_file_mb", defaultMaxFileMB); err != nil {
		return nil, err
	}
	if cfg.MaxFileMB <= 0 {
		return nil, fmt.Errorf("max_file_mb must be positive")
	}

	return cfg, nil
}
