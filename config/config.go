package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IMMO_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration. It is built once by Load and
// passed explicitly to every stage.
type Config struct {
	StartURLs         []string      `koanf:"start_urls"`
	PageCap           int           `koanf:"page_cap"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	UserAgent         string        `koanf:"user_agent"`
	AcceptLanguage    string        `koanf:"accept_language"`
	DetailConcurrency int           `koanf:"detail_concurrency"`
	RateLimitMs       int           `koanf:"rate_limit_ms"`
	MaxRetries        int           `koanf:"max_retries"`
	RespectRobots     bool          `koanf:"respect_robots"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`

	DataDir      string `koanf:"data_dir"`
	CSVSourceURL string `koanf:"csv_source_url"`

	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`
	LogJSON  bool   `koanf:"log_json"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		PageCap:           10,
		RequestTimeout:    15 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		AcceptLanguage:    "fr-FR,fr;q=0.9",
		DetailConcurrency: 1,
		RateLimitMs:       1000,
		MaxRetries:        1,
		MaxBodyBytes:      5 * 1024 * 1024,
		DataDir:           "data",
		Addr:              ":8080",
		LogLevel:          "info",
	}
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults
//  2. a .env file in the working directory, if present
//  3. a YAML file named by IMMO_CONFIG, if set
//  4. IMMO_* environment variables
func Load(_ context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// IMMO_START_URLS -> start_urls. Keys stay flat to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.StartURLs = splitList(cfg.StartURLs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and URL syntax.
func (c *Config) Validate() error {
	for _, u := range c.StartURLs {
		parsed, err := url.Parse(u)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("%w: start url %q is not absolute", ErrInvalidConfig, u)
		}
	}
	if c.PageCap < 1 {
		return fmt.Errorf("%w: page_cap must be >= 1", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.DetailConcurrency < 1 {
		return fmt.Errorf("%w: detail_concurrency must be >= 1", ErrInvalidConfig)
	}
	if c.RateLimitMs < 0 {
		return fmt.Errorf("%w: rate_limit_ms must be >= 0", ErrInvalidConfig)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be >= 1", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.DBDriver != "" && c.DBDSN == "" {
		return fmt.Errorf("%w: db_dsn is required with db_driver %s", ErrInvalidConfig, c.DBDriver)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	return nil
}

// Paths of the stage outputs inside DataDir.
func (c *Config) RawPath() string   { return filepath.Join(c.DataDir, "raw.json") }
func (c *Config) CleanPath() string { return filepath.Join(c.DataDir, "clean_normalized.json") }
func (c *Config) CSVPath() string   { return filepath.Join(c.DataDir, "dataset.csv") }

// splitList trims entries and also splits entries that still contain commas,
// which happens when a YAML list item holds several URLs.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
