package sqlserver

import (
	"fmt"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
)

// Config contains SQL Server connection options plus the query source:
// either a table name or a SQL query with named parameters.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int

	Table  string
	Query  string
	Params map[string]any
	Limit  int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a reader spec options map.
func FromMap(options map[string]any) (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.Host, err = reader.RequiredString(options, "host"); err != nil {
		return nil, err
	}
	if cfg.Database, err = reader.RequiredString(options, "database"); err != nil {
		return nil, err
	}
	if cfg.User, err = reader.RequiredString(options, "user"); err != nil {
		return nil, err
	}
	if cfg.Password, err = reader.StringOption(options, "password", ""); err != nil {
		return nil, err
	}
	if cfg.Port, err = reader.IntOption(options, "port", DefaultPort()); err != nil {
		return nil, err
	}
	if cfg.ConnectionTimeout, err = reader.IntOption(options, "connection_timeout", DefaultConnectionTimeout()); err != nil {
		return nil, err
	}
	if cfg.TrustServerCertificate, err = reader.BoolOption(options, "trust_server_certificate", false); err != nil {
		return nil, err
	}
	if cfg.Encrypt, err = encryptOption(options); err != nil {
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

// encryptOption reads the encrypt flag, which go-mssqldb connection
// strings also allow as the strings "true", "false" and "strict".
func encryptOption(options map[string]any) (bool, error) {
	raw, ok := options["encrypt"]
	if !ok {
		return true, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true" || v == "strict", nil
	default:
		return false, fmt.Errorf("encrypt must be a boolean")
	}
}
