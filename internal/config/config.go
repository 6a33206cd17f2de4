// Package config loads runtime settings for the stars commands.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("APIKEY environment variable is not set")

// Config .
type Config struct {
	// Token is only ever read from the environment.
	Token       string        `env:"APIKEY" yaml:"-"`
	APIURL      string        `env:"GITHUB_API_URL" yaml:"api_url"`
	ReportPath  string        `env:"STARS_REPORT" yaml:"report_path"`
	PerPage     int           `env:"STARS_PER_PAGE" yaml:"per_page"`
	UnstarDelay time.Duration `env:"STARS_UNSTAR_DELAY" yaml:"unstar_delay"`
	HTTPTimeout time.Duration `env:"STARS_HTTP_TIMEOUT" yaml:"http_timeout"`

	// MetricsTextfile, when set, receives run counters in the Prometheus
	// text exposition format.
	MetricsTextfile string `env:"STARS_METRICS_TEXTFILE" yaml:"metrics_textfile"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		ReportPath:  "stars.txt",
		UnstarDelay: 500 * time.Millisecond,
		HTTPTimeout: 30 * time.Second,
	}
}

// Load builds a Config from defaults, an optional YAML file, a .env file in
// the working directory and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err = yaml.UnmarshalStrict(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.ReportPath == "" {
		return errors.New("report path must not be empty")
	}
	if c.PerPage < 0 || c.PerPage > 100 {
		return fmt.Errorf("per_page must be between 0 and 100, got %d", c.PerPage)
	}
	if c.UnstarDelay < 0 {
		return fmt.Errorf("unstar_delay must not be negative, got %s", c.UnstarDelay)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	return nil
}
