// Package config provides configuration management for obsearch.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/obsearch/internal/pattern"
)

const (
	// DefaultPort is the default HTTP port.
	DefaultPort = 5000

	// DefaultDBPath is the SQLite file written by the bulk loader.
	DefaultDBPath = "cop_endpoints_db"

	// DefaultSettingsFile is read from the working directory when present.
	DefaultSettingsFile = "obsearch.yaml"

	// DefaultDotEnvFile is read from the working directory when present.
	DefaultDotEnvFile = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "OBSEARCH_"

	// SettingsEnvVar names the settings file when --config is not given.
	SettingsEnvVar = EnvPrefix + "CONFIG"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	Host           string        `yaml:"host" env:"HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// Database settings
	Backend  string `yaml:"backend" env:"BACKEND"`
	DBPath   string `yaml:"db_path" env:"DB_PATH"`
	DSN      string `yaml:"dsn" env:"DSN"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS"`

	// Search settings
	PerPage     int    `yaml:"per_page" env:"PER_PAGE"`
	PatternMode string `yaml:"pattern_mode" env:"PATTERN_MODE"`

	// Rate limiting (requests per second per client, 0 disables)
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// LoadOptions selects the files Load reads.
type LoadOptions struct {
	// SettingsPath is the YAML settings file. When empty, SettingsEnvVar is
	// consulted, then DefaultSettingsFile if it exists.
	SettingsPath string
	// DotEnvPath is the .env file. When empty, DefaultDotEnvFile is used
	// if it exists.
	DotEnvPath string
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           DefaultPort,
		RequestTimeout: 30 * time.Second,
		Backend:        BackendSQLite,
		DBPath:         DefaultDBPath,
		MaxConns:       4,
		PerPage:        10,
		PatternMode:    string(pattern.ModeEscaped),
		RateLimit:      20,
		RateBurst:      40,
		LogLevel:       "info",
	}
}

// Load builds the configuration: defaults, then the settings file, then the
// .env file, then OBSEARCH_* environment variables. Variables already set in
// the environment win over the .env file.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	settingsPath, explicit := resolveSettingsPath(opts.SettingsPath)
	if settingsPath != "" {
		if err := cfg.mergeFile(settingsPath); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	dotenvPath := opts.DotEnvPath
	if dotenvPath == "" {
		dotenvPath = DefaultDotEnvFile
	}
	if _, err := os.Stat(dotenvPath); err == nil {
		if err := godotenv.Load(dotenvPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	} else if opts.DotEnvPath != "" {
		return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveSettingsPath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if p := os.Getenv(SettingsEnvVar); p != "" {
		return p, true
	}
	return DefaultSettingsFile, false
}

// mergeFile overlays the YAML settings at path onto cfg.
// Unknown keys are rejected.
func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PerPage < 1 {
		errs = append(errs, fmt.Errorf("per_page must be positive, got %d", c.PerPage))
	}
	if c.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("max_conns must be positive, got %d", c.MaxConns))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must not be negative"))
	}
	if _, err := pattern.ParseMode(c.PatternMode); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Backend) {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendSQLite, BackendPostgres))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Mode returns the parsed pattern mode, falling back to escaped.
func (c *Config) Mode() pattern.Mode {
	m, err := pattern.ParseMode(c.PatternMode)
	if err != nil {
		return pattern.ModeEscaped
	}
	return m
}
