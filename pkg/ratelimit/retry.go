package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_retries_total",
		Help: "Total number of rate-limit retries by delay source",
	}, []string{"source"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqkit_retry_backoff_seconds",
		Help:    "Wait before a rate-limit retry by delay source",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"source"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reqkit_retry_exhausted_total",
		Help: "Total number of operations that were still rate limited after the last retry",
	})
)

// Delay sources reported to observers and metrics.
const (
	SourceHeader  = "header"
	SourceBackoff = "backoff"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Event describes one rate-limited attempt.
type Event struct {
	// Attempt is the zero-based index of the failed attempt.
	Attempt int

	// Delay is the wait before the next attempt. Zero when Exhausted.
	Delay time.Duration

	// Source is SourceHeader or SourceBackoff. Empty when Exhausted.
	Source string

	// Exhausted is set when no retries are left and the error is returned.
	Exhausted bool

	// Err is the rate-limit error returned by the operation.
	Err error
}

// Observer is notified about rate-limited attempts. It cannot change the
// retry decision.
type Observer interface {
	OnRateLimited(ctx context.Context, ev Event)
}

// Retrier retries operations that fail with a rate-limit error.
// It holds no per-call state and is safe for concurrent use.
type Retrier struct {
	config   Config
	sleep    SleepFunc
	observer Observer
	logger   zerolog.Logger
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithSleep replaces the context aware timer sleep (used by tests).
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) {
		r.sleep = fn
	}
}

// WithObserver registers an observer for rate-limited attempts.
func WithObserver(o Observer) Option {
	return func(r *Retrier) {
		r.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// New creates a Retrier. Unset config fields take their defaults.
func New(cfg Config, opts ...Option) *Retrier {
	r := &Retrier{
		config: cfg.WithDefaults(),
		sleep:  sleepContext,
		logger: log.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the resolved configuration.
func (r *Retrier) Config() Config {
	return r.config
}

// Do runs op, retrying while it fails with a rate-limit error.
// Up to MaxRetries+1 attempts are made. Errors that are not rate-limit errors,
// and the rate-limit error of the last attempt, are returned unchanged.
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	cfg := r.config
	maxRetries := max(cfg.MaxRetries, 0)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return result, nil
		}

		if !IsRateLimitError(err) {
			return zero, err
		}

		if attempt >= maxRetries {
			retryExhaustedTotal.Inc()
			r.notify(ctx, Event{Attempt: attempt, Exhausted: true, Err: err})
			r.logger.Warn().
				Int("max_retries", maxRetries).
				Err(err).
				Msg("Rate limit retries exhausted")
			return zero, err
		}

		delay, source := r.delay(err, attempt)
		retriesTotal.WithLabelValues(source).Inc()
		retryBackoffSeconds.WithLabelValues(source).Observe(delay.Seconds())
		r.notify(ctx, Event{Attempt: attempt, Delay: delay, Source: source, Err: err})

		r.logger.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("source", source).
			Msg("Rate limited, retrying after delay")

		if err := r.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("waiting for rate limit retry: %w", err)
		}
	}

	return zero, ErrMaxRetriesExceeded
}

// Wrap decorates an executor so every call goes through Do.
func (r *Retrier) Wrap(exec request.Executor) request.Executor {
	return func(ctx context.Context, t request.Template) (any, error) {
		return Do(ctx, r, func(ctx context.Context) (any, error) {
			return exec(ctx, t)
		})
	}
}

// delay picks the wait before the retry following attempt.
func (r *Retrier) delay(err error, attempt int) (time.Duration, string) {
	if hint, ok := retryAfter(err, r.config.RetryAfterHeaderName); ok {
		return hint, SourceHeader
	}
	return Backoff(r.config, attempt), SourceBackoff
}

func (r *Retrier) notify(ctx context.Context, ev Event) {
	if r.observer != nil {
		r.observer.OnRateLimited(ctx, ev)
	}
}

// Backoff returns InitialDelay * BackoffMultiplier^attempt.
func Backoff(cfg Config, attempt int) time.Duration {
	return time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt)))
}

// sleepContext waits for d without blocking other goroutines and gives up
// when ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
