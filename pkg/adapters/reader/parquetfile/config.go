package parquetfile

import (
	"fmt"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

// Config holds parquet reader options resolved from a reader spec.
type Config struct {
	Path string
	// Limit truncates the read after this many rows. Zero reads all.
	Limit int
}

// FromMap builds the config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	path, ok := options["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required for the parquet reader")
	}
	cfg.Path = path

	if cfg.Limit, err = reader.IntOption(options, "limit", 0); err != nil {
		return nil, err
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}

	return cfg, nil
}
