package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the reconciliation engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Reader
// credentials never live here: they arrive per run inside reader options.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"RECON_BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"RECON_PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"RECON_ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// RunFile switches the engine into one-shot mode: execute the run
	// definition at this path, export its report, and exit instead of
	// serving HTTP.
	RunFile string `yaml:"run_file" env:"RECON_RUN_FILE" env-default:""`

	Log     LogConfig     `yaml:"log"`
	Export  ExportConfig  `yaml:"export"`
	Runs    RunsConfig    `yaml:"runs"`
	Readers ReadersConfig `yaml:"readers"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level" env:"RECON_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"RECON_LOG_FORMAT" env-default:"json"`
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	// Dir is the directory report files are written under, one
	// subdirectory per run.
	Dir string `yaml:"dir" env:"RECON_EXPORT_DIR" env-default:"./exports"`
}

// RunsConfig holds run scheduling settings.
type RunsConfig struct {
	// MaxConcurrent limits how many comparison runs execute at once.
	MaxConcurrent int `yaml:"max_concurrent" env:"RECON_RUNS_MAX_CONCURRENT" env-default:"2"`
	// RetainLimit is how many finished runs are kept in memory before the
	// oldest are evicted.
	RetainLimit int `yaml:"retain_limit" env:"RECON_RUNS_RETAIN_LIMIT" env-default:"100"`
}

// ReadersConfig holds limits applied to every dataset reader.
type ReadersConfig struct {
	// QueryTimeoutSeconds bounds a single database read.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"RECON_READER_QUERY_TIMEOUT_SECONDS" env-default:"300"`
	// MaxRows caps the rows any reader will materialize. Zero disables
	// the cap.
	MaxRows int `yaml:"max_rows" env:"RECON_READER_MAX_ROWS" env-default:"5000000"`
}

// Load reads configuration from the config file with environment variable
// overrides. The file path defaults to config.yaml and can be moved with
// RECON_CONFIG; a missing file is fine, configuration then comes entirely
// from environment variables and defaults. The version parameter is
// injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	path := os.Getenv("RECON_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Runs.MaxConcurrent < 1 {
		return fmt.Errorf("runs.max_concurrent must be at least 1, got %d", c.Runs.MaxConcurrent)
	}
	if c.Runs.RetainLimit < 1 {
		return fmt.Errorf("runs.retain_limit must be at least 1, got %d", c.Runs.RetainLimit)
	}
	if c.Readers.QueryTimeoutSeconds < 1 {
		return fmt.Errorf("readers.query_timeout_seconds must be at least 1, got %d", c.Readers.QueryTimeoutSeconds)
	}
	if c.Readers.MaxRows < 0 {
		return fmt.Errorf("readers.max_rows must not be negative, got %d", c.Readers.MaxRows)
	}
	return nil
}
