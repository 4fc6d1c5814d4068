// Package logging configures the global zerolog logger used by reqkit and
// hands out component loggers.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every page and every retry attempt.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs rate limiting, exhausted retries and page ceilings.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "REQKIT_LOG_LEVEL"
	EnvPretty = "REQKIT_LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromEnv returns DefaultConfig overridden by REQKIT_LOG_LEVEL and
// REQKIT_LOG_PRETTY. getenv is usually os.Getenv.
func FromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if level := getenv(EnvLevel); level != "" {
		cfg.Level = LogLevel(level)
	}
	if pretty, err := strconv.ParseBool(getenv(EnvPretty)); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown values mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "trace", "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: one line per unit of work
//   - Page fetched (page, items, total)
//   - HTTP request completed (method, url, status, duration)
//   - Builder execution start
//
// Info: normal operation events
//   - Request succeeded after retry
//   - Server startup/shutdown
//
// Warn: degraded but handled
//   - Rate limited, retrying after delay
//   - Rate limit retries exhausted
//   - Pagination stopped at max pages
//   - Rate-limit tracker write failed
//
// Error: failures requiring attention
//   - HTTP transport failures
//   - Configuration errors
//
// Context Fields:
//   - component: package emitting the line (client, pagination, ratelimit, transport)
//   - node: caller identity of a Builder
//   - strategy: pagination strategy
//   - page, items, total: pagination progress
//   - attempt, delay, source: retry progress
//   - status, method, url: HTTP call details
//   - error_class: client, server, rate_limit, canceled, network
