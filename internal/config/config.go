// Package config loads service configuration.
//
// Values come from three layers, later layers winning:
//  1. built-in defaults
//  2. an optional YAML file named by CONFIG_FILE
//  3. environment variables
//
// Load validates the merged result and names the offending key on error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/social-host/internal/vfile"
)

// Version is set at build time with -ldflags "-X ...config.Version=...".
var Version = "1.0.0"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port int `yaml:"port"`

	// vfile signing
	SecretKey    string `yaml:"secret_key"`
	MACAlgorithm string `yaml:"mac_algorithm"`

	// Public addresses are built as <SiteScheme>://<SiteDomain>/...
	SiteDomain string `yaml:"site_domain"`
	SiteScheme string `yaml:"site_scheme"`

	MaxFileSize   int64         `yaml:"max_file_size"`
	FileTTLDays   int           `yaml:"file_ttl_days"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	LogLevel  slog.Level `yaml:"-"`
	LogFormat string     `yaml:"log_format"`
	// LogLevelName is the textual form read from YAML/env; Load parses it into LogLevel.
	LogLevelName string `yaml:"log_level"`

	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing is set.
// SecretKey has no default; Load fails without one.
func Default() *Config {
	return &Config{
		Port:             8080,
		MACAlgorithm:     "HS256",
		SiteDomain:       "localhost:8080",
		SiteScheme:       "http",
		MaxFileSize:      5 * 1024 * 1024,
		FileTTLDays:      30,
		SweepInterval:    24 * time.Hour,
		DBDriver:         DriverSQLite,
		DBPath:           "data/social-host.db",
		CacheSize:        1024,
		CacheTTL:         30 * time.Second,
		LogLevelName:     "info",
		LogFormat:        "text",
		HTTPReadTimeout:  15 * time.Second,
		HTTPWriteTimeout: 15 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}

// Retention is the window after which an unread account is swept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.FileTTLDays) * 24 * time.Hour
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	e := envReader{getenv: getenv}
	e.int("PORT", &cfg.Port)
	e.str("SECRET_KEY", &cfg.SecretKey)
	e.str("MAC_ALGORITHM", &cfg.MACAlgorithm)
	e.str("SITE_DOMAIN", &cfg.SiteDomain)
	e.str("SITE_SCHEME", &cfg.SiteScheme)
	e.int64("MAX_FILE_SIZE", &cfg.MaxFileSize)
	e.int("FILE_TTL_DAYS", &cfg.FileTTLDays)
	e.duration("SWEEP_INTERVAL", &cfg.SweepInterval)
	e.str("DB_DRIVER", &cfg.DBDriver)
	e.str("DB_PATH", &cfg.DBPath)
	e.str("DATABASE_URL", &cfg.DatabaseURL)
	e.int("CACHE_SIZE", &cfg.CacheSize)
	e.duration("CACHE_TTL", &cfg.CacheTTL)
	e.str("LOG_LEVEL", &cfg.LogLevelName)
	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.duration("HTTP_READ_TIMEOUT", &cfg.HTTPReadTimeout)
	e.duration("HTTP_WRITE_TIMEOUT", &cfg.HTTPWriteTimeout)
	e.duration("HTTP_IDLE_TIMEOUT", &cfg.HTTPIdleTimeout)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("CONFIG_FILE: reading %s: %w", path, err)
	}
	// Decoding onto the defaults keeps every key the file leaves out.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("CONFIG_FILE: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	var err error

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: %d is out of range", c.Port)
	}
	if len(c.SecretKey) < vfile.MinSecretLength {
		return fmt.Errorf("SECRET_KEY: must be set and at least %d characters", vfile.MinSecretLength)
	}
	if c.SiteDomain == "" {
		return errors.New("SITE_DOMAIN: must not be empty")
	}
	if c.SiteScheme != "http" && c.SiteScheme != "https" {
		return fmt.Errorf("SITE_SCHEME: %q is not http or https", c.SiteScheme)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE: %d must be positive", c.MaxFileSize)
	}
	if c.FileTTLDays <= 0 {
		return fmt.Errorf("FILE_TTL_DAYS: %d must be positive", c.FileTTLDays)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL: %s must be positive", c.SweepInterval)
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH: must not be empty for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL: required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER: %q is not %s or %s", c.DBDriver, DriverSQLite, DriverPostgres)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("CACHE_SIZE: %d must not be negative", c.CacheSize)
	}

	c.LogLevel, err = parseLogLevel(c.LogLevelName)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT: %q is not json or text", c.LogFormat)
	}
	return nil
}

// SetupLogger builds the process logger and installs it as slog's default.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// envReader overrides fields from environment variables that are set,
// collecting parse errors instead of stopping at the first.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key string, dst *string) {
	if v := e.getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) int64(key string, dst *int64) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}
