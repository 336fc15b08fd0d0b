package postgres

import (
	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

// Config contains PostgreSQL connection options plus the query source:
// either a table name or a SQL query with named parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"

	Table  string
	Query  string
	Params map[string]any
	Limit  int
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.Host, err = reader.RequiredString(options, "host"); err != nil {
		return nil, err
	}
	if cfg.User, err = reader.RequiredString(options, "user"); err != nil {
		return nil, err
	}
	if cfg.Database, err = reader.RequiredString(options, "database"); err != nil {
		return nil, err
	}
	if cfg.Password, err = reader.StringOption(options, "password", ""); err != nil {
		return nil, err
	}
	if cfg.Port, err = reader.IntOption(options, "port", DefaultPort()); err != nil {
		return nil, err
	}
	if cfg.SSLMode, err = reader.StringOption(options, "ssl_mode", DefaultSSLMode()); err != nil {
		return nil, err
	}

	src, err := reader.QuerySourceFromMap(options)
	if err != nil {
		return nil, err
	}
	cfg.Table, cfg.Query = src.Table, src.Query
	cfg.Params, cfg.Limit = src.Params, src.Limit

	return cfg, nil
}
