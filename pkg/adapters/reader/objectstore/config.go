package objectstore

import (
	"fmt"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

const defaultMaxObjectMB = 512

// Config holds S3-compatible object storage options resolved from a reader
// spec.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	Region    string
	// MaxObjectMB refuses objects larger than this before downloading.
	MaxObjectMB int
}

// FromMap builds the config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.Endpoint, err = reader.RequiredString(options, "endpoint"); err != nil {
		return nil, err
	}
	if cfg.AccessKey, err = reader.RequiredString(options, "access_key"); err != nil {
		return nil, err
	}
	if cfg.SecretKey, err = reader.RequiredString(options, "secret_key"); err != nil {
		return nil, err
	}
	if cfg.Bucket, err = reader.RequiredString(options, "bucket"); err != nil {
		return nil, err
	}
	if cfg.Key, err = reader.RequiredString(options, "key"); err != nil {
		return nil, err
	}
	if cfg.Region, err = reader.StringOption(options, "region", ""); err != nil {
		return nil, err
	}
	if cfg.MaxObjectMB, err = reader.IntOption(options, "max_object_mb", defaultMaxObjectMB); err != nil {
		return nil, err
	}
	if cfg.MaxObjectMB <= 0 {
		return nil, fmt.Errorf("max_object_mb must be positive")
	}

	return cfg, nil
}
