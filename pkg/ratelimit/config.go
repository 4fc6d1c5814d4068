// Package ratelimit retries operations that were rejected with HTTP 429.
//
// A Retrier re-invokes an operation while it keeps failing with a rate-limit
// error and the attempt budget allows it. The wait between attempts comes from
// the server's retry-after header when present, otherwise from exponential
// backoff. Every other error is returned on first occurrence.
//
// The Redis backed Tracker records rate-limit hits per scope so that several
// processes can see how often, and until when, an API pushed back.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by DefaultConfig.
const (
	DefaultMaxRetries           = 3
	DefaultRetryAfterHeaderName = "retry-after"
	DefaultInitialDelay         = 1000 * time.Millisecond
	DefaultBackoffMultiplier    = 2.0
)

// NoRetries is the MaxRetries value for a single attempt. A zero MaxRetries
// is unset and resolves to DefaultMaxRetries.
const NoRetries = -1

// Config holds the retry configuration. Zero fields take their defaults.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Use NoRetries to disable retrying.
	MaxRetries int

	// RetryAfterHeaderName is the response header holding the server's wait hint in seconds.
	RetryAfterHeaderName string

	// InitialDelay is the backoff before the first retry when no hint is present.
	InitialDelay time.Duration

	// BackoffMultiplier scales the delay for every following retry.
	BackoffMultiplier float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           DefaultMaxRetries,
		RetryAfterHeaderName: DefaultRetryAfterHeaderName,
		InitialDelay:         DefaultInitialDelay,
		BackoffMultiplier:    DefaultBackoffMultiplier,
	}
}

// WithDefaults fills unset fields with their defaults.
// Negative MaxRetries values become NoRetries.
func (c Config) WithDefaults() Config {
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = NoRetries
	}
	if c.RetryAfterHeaderName == "" {
		c.RetryAfterHeaderName = DefaultRetryAfterHeaderName
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return c
}

// Validate checks if the configuration is usable as given.
func (c Config) Validate() error {
	if c.MaxRetries < NoRetries {
		return fmt.Errorf("maxRetries must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initialDelayMs must be >= 0 (got %d)", c.InitialDelay.Milliseconds())
	}
	if c.BackoffMultiplier <= 0 {
		return fmt.Errorf("backoffMultiplier must be > 0 (got %g)", c.BackoffMultiplier)
	}
	return nil
}

// fileConfig is the flat, millisecond based form used in YAML and JSON documents.
type fileConfig struct {
	MaxRetries           *int     `yaml:"maxRetries" json:"maxRetries"`
	RetryAfterHeaderName string   `yaml:"retryAfterHeaderName" json:"retryAfterHeaderName"`
	InitialDelayMs       *int     `yaml:"initialDelayMs" json:"initialDelayMs"`
	BackoffMultiplier    *float64 `yaml:"backoffMultiplier" json:"backoffMultiplier"`
}

// ParseConfig decodes a YAML (or JSON) document such as
//
//	maxRetries: 5
//	retryAfterHeaderName: x-ratelimit-reset
//	initialDelayMs: 500
//	backoffMultiplier: 3
//
// Absent fields keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse rate limit config: %w", err)
	}
	return fc.toConfig()
}

func (fc fileConfig) toConfig() (Config, error) {
	cfg := DefaultConfig()
	if fc.MaxRetries != nil {
		cfg.MaxRetries = retriesOf(*fc.MaxRetries)
	}
	if fc.RetryAfterHeaderName != "" {
		cfg.RetryAfterHeaderName = fc.RetryAfterHeaderName
	}
	if fc.InitialDelayMs != nil {
		cfg.InitialDelay = time.Duration(*fc.InitialDelayMs) * time.Millisecond
	}
	if fc.BackoffMultiplier != nil {
		cfg.BackoffMultiplier = *fc.BackoffMultiplier
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UnmarshalYAML lets Config be embedded in larger YAML documents.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var fc fileConfig
	if err := node.Decode(&fc); err != nil {
		return err
	}
	cfg, err := fc.toConfig()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// UnmarshalJSON accepts the same flat form as ParseConfig.
func (c *Config) UnmarshalJSON(data []byte) error {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}
	cfg, err := fc.toConfig()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// retriesOf maps an explicit retry count onto Config.MaxRetries, where zero
// means unset. Negative counts are left for Validate to reject.
func retriesOf(n int) int {
	switch {
	case n == 0:
		return NoRetries
	case n < 0:
		return NoRetries - 1
	default:
		return n
	}
}

// Retries builds a Config with an explicit retry count; 0 disables retrying.
func Retries(n int) Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = retriesOf(n)
	return cfg
}
