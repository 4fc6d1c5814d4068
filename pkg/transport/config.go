package transport

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds the HTTP executor configuration.
type Config struct {
	// Timeout bounds a single HTTP attempt. Ignored when HTTPClient is set.
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64

	// Burst is the pacing bucket size. Defaults to 1 when pacing is enabled.
	Burst int

	// Credentials maps credential types to authenticators.
	Credentials map[string]Authenticator

	// HTTPClient replaces the default client (used by tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration without pacing or credentials.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "reqkit/1.0",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative (got %s)", c.Timeout)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative (got %g)", c.RequestsPerSecond)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst cannot be negative (got %d)", c.Burst)
	}
	for name, auth := range c.Credentials {
		if name == "" {
			return fmt.Errorf("credential type must not be empty")
		}
		if auth == nil {
			return fmt.Errorf("credential %q has no authenticator", name)
		}
	}
	return nil
}
