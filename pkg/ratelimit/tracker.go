package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var trackerHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reqkit_rate_limit_hits_recorded_total",
	Help: "Total number of rate-limit responses recorded in Redis by outcome",
}, []string{"outcome"})

// Tracker records rate-limit responses in Redis so that every process
// talking to the same API sees the same history.
type Tracker struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		ttl:    DefaultStateTTL,
		logger: logger,
	}
}

// Record stores one rate-limit hit for scope. blockedFor is the wait the
// caller is about to honour.
func (t *Tracker) Record(ctx context.Context, scope string, blockedFor time.Duration) error {
	if scope == "" {
		return errors.New("scope is required")
	}

	now := time.Now()
	blockedUntil := now.Add(blockedFor)

	pipe := t.redis.TxPipeline()
	hits := pipe.Incr(ctx, fmt.Sprintf(redisKeyHits, scope))
	pipe.Expire(ctx, fmt.Sprintf(redisKeyHits, scope), t.ttl)
	pipe.Set(ctx, fmt.Sprintf(redisKeyLastHit, scope), now.UnixMilli(), t.ttl)
	pipe.Set(ctx, fmt.Sprintf(redisKeyBlockedUntil, scope), blockedUntil.UnixMilli(), t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		trackerHitsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	trackerHitsTotal.WithLabelValues("stored").Inc()

	t.logger.Debug().
		Str("scope", scope).
		Int64("hits", hits.Val()).
		Time("blocked_until", blockedUntil).
		Msg("Rate limit hit recorded")

	return nil
}

// GetState retrieves the recorded state for scope.
// A scope without history returns a zero State (not blocked, no hits).
func (t *Tracker) GetState(ctx context.Context, scope string) (*State, error) {
	state := &State{Scope: scope}

	hits, err := t.redis.Get(ctx, fmt.Sprintf(redisKeyHits, scope)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get hits: %w", err)
	}
	state.Hits = hits

	lastHit, err := t.redis.Get(ctx, fmt.Sprintf(redisKeyLastHit, scope)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last hit: %w", err)
	}
	if lastHit > 0 {
		state.LastHitAt = time.UnixMilli(lastHit)
	}

	blockedUntil, err := t.redis.Get(ctx, fmt.Sprintf(redisKeyBlockedUntil, scope)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}
	if blockedUntil > 0 {
		state.BlockedUntil = time.UnixMilli(blockedUntil)
	}

	return state, nil
}

// Reset removes all recorded state for scope.
func (t *Tracker) Reset(ctx context.Context, scope string) error {
	err := t.redis.Del(ctx,
		fmt.Sprintf(redisKeyHits, scope),
		fmt.Sprintf(redisKeyLastHit, scope),
		fmt.Sprintf(redisKeyBlockedUntil, scope),
	).Err()
	if err != nil {
		return fmt.Errorf("reset rate limit state: %w", err)
	}
	return nil
}

// Observer returns a retry Observer that records hits under scope.
// Redis failures are logged and never affect the retry loop.
func (t *Tracker) Observer(scope string) Observer {
	return &trackerObserver{tracker: t, scope: scope}
}

type trackerObserver struct {
	tracker *Tracker
	scope   string
}

func (o *trackerObserver) OnRateLimited(ctx context.Context, ev Event) {
	if err := o.tracker.Record(ctx, o.scope, ev.Delay); err != nil {
		o.tracker.logger.Warn().Err(err).Str("scope", o.scope).Msg("Failed to record rate limit hit")
	}
}
