// Package config loads harness settings from CROSSCHECK_* environment
// variables. Command-line flags override what is loaded here.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/crosscheck/internal/await"
	"github.com/roach88/crosscheck/internal/driver"
)

// Config is the full harness configuration.
type Config struct {
	BaseURL    string `env:"CROSSCHECK_BASE_URL"    envDefault:"http://localhost:8080"`
	Browser    string `env:"CROSSCHECK_BROWSER"     envDefault:"chromium"`
	Headless   bool   `env:"CROSSCHECK_HEADLESS"    envDefault:"true"`
	ResultsDir string `env:"CROSSCHECK_RESULTS_DIR" envDefault:"test-results"`

	DefaultTimeout  time.Duration `env:"CROSSCHECK_DEFAULT_TIMEOUT"  envDefault:"2s"`
	ExtendedTimeout time.Duration `env:"CROSSCHECK_EXTENDED_TIMEOUT" envDefault:"15s"`
	PollInterval    time.Duration `env:"CROSSCHECK_POLL_INTERVAL"    envDefault:"100ms"`
	ActionTimeout   time.Duration `env:"CROSSCHECK_ACTION_TIMEOUT"   envDefault:"5s"`

	// DB is the run ledger path. Empty disables the ledger.
	DB string `env:"CROSSCHECK_DB"`
}

// Browsers lists the accepted browser engines.
var Browsers = []string{driver.Chromium, driver.Firefox, driver.WebKit}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base url %q: scheme must be http or https", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base url %q: missing host", c.BaseURL))
	}

	if !slices.Contains(Browsers, c.Browser) {
		errs = append(errs, fmt.Errorf("browser %q: must be one of %v", c.Browser, Browsers))
	}
	if c.ResultsDir == "" {
		errs = append(errs, errors.New("results dir is required"))
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("action timeout must be positive, got %s", c.ActionTimeout))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Policy returns the wait policy for the await engine.
func (c Config) Policy() await.Policy {
	return await.Policy{
		Default:  c.DefaultTimeout,
		Extended: c.ExtendedTimeout,
		Interval: c.PollInterval,
	}
}

// DriverOptions returns the browser launch options.
func (c Config) DriverOptions() driver.Options {
	return driver.Options{
		Engine:        c.Browser,
		Headless:      c.Headless,
		BaseURL:       c.BaseURL,
		ActionTimeout: c.ActionTimeout,
	}
}
