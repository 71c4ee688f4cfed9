// Package config loads the settings of the rangefetch and glitchsrv
// commands from YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/rangefetch/client/download"
	"github.com/adamwoolhether/rangefetch/web"
)

// Config defines the configuration of the rangefetch CLI.
type Config struct {
	URL      string         `yaml:"url" validate:"required,http_url"`
	Manifest string         `yaml:"manifest" validate:"omitempty,startswith=/"`
	Digest   string         `yaml:"digest"`
	Output   string         `yaml:"output"`
	Timeout  time.Duration  `yaml:"timeout" validate:"gte=0"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Progress bool           `yaml:"progress"`
	Force    bool           `yaml:"force"`
	Request  RequestConfig  `yaml:"request"`
	Retry    RetryConfig    `yaml:"retry"`
	Throttle ThrottleConfig `yaml:"throttle"`
}

// RequestConfig bounds single HTTP exchanges.
type RequestConfig struct {
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent string        `yaml:"user_agent"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Limit       int           `yaml:"limit" validate:"gt=0"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gt=0"`
	Backoff     time.Duration `yaml:"backoff" validate:"gte=0"`
	MaxBackoff  time.Duration `yaml:"max_backoff" validate:"gtefield=Backoff"`
}

// ThrottleConfig enables request rate limiting when RPS is set.
type ThrottleConfig struct {
	RPS   int `yaml:"rps" validate:"gte=0"`
	Burst int `yaml:"burst" validate:"required_with=RPS,gte=0"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Request: RequestConfig{
			Timeout:   30 * time.Second,
			UserAgent: "rangefetch",
		},
		Retry: RetryConfig{
			Limit:       5,
			MaxAttempts: 1000,
			Backoff:     100 * time.Millisecond,
			MaxBackoff:  2 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()
	if err := Decode(path, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Decode reads the YAML file at path into dst. Fields absent from the
// file keep their current values. Unknown fields are rejected.
func Decode(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// Validate checks the configuration. Failures are reported per field.
func (c Config) Validate() error {
	if err := web.Validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// Endpoint builds the data source endpoint from URL, Manifest and Digest.
func (c Config) Endpoint() (download.Endpoint, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return download.Endpoint{}, fmt.Errorf("parse url: %w", err)
	}

	ep := download.Endpoint{
		BaseURL:      &url.URL{Scheme: u.Scheme, Host: u.Host},
		Path:         u.Path,
		ManifestPath: c.Manifest,
		Digest:       c.Digest,
	}

	return ep, ep.Validate()
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return l
}

// DownloadOptions maps the retry and progress settings to session
// options.
func (c Config) DownloadOptions() []download.Option {
	opts := []download.Option{
		download.WithRetryLimit(c.Retry.Limit),
		download.WithMaxAttempts(c.Retry.MaxAttempts),
		download.WithBackoff(c.Retry.Backoff, c.Retry.MaxBackoff),
	}
	if c.Progress {
		opts = append(opts, download.WithProgress())
	}
	if !c.Force {
		opts = append(opts, download.WithSkipExisting())
	}

	return opts
}
