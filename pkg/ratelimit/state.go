package ratelimit

import (
	"time"
)

// Redis key layout for rate-limit state. %s is the scope.
const (
	redisKeyPrefix       = "reqkit:ratelimit:"
	redisKeyHits         = redisKeyPrefix + "%s:hits"
	redisKeyLastHit      = redisKeyPrefix + "%s:last_hit"
	redisKeyBlockedUntil = redisKeyPrefix + "%s:blocked_until"
)

// DefaultStateTTL bounds how long recorded state survives without new hits.
const DefaultStateTTL = 24 * time.Hour

// State is the recorded rate-limit history of one scope (an API host, a
// credential, a workflow node).
type State struct {
	// Scope is the key the state was recorded under.
	Scope string `json:"scope"`

	// Hits counts rate-limit responses seen for the scope.
	Hits int64 `json:"hits"`

	// LastHitAt is the time of the most recent rate-limit response.
	LastHitAt time.Time `json:"last_hit_at"`

	// BlockedUntil is when the server's last hint (or our backoff) expires.
	BlockedUntil time.Time `json:"blocked_until"`
}

// IsBlocked returns true while the last recorded wait has not elapsed.
func (s *State) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// TimeUntilReset returns the remaining wait, or 0 once it has elapsed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.BlockedUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsStale returns true if no hit was recorded within maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastHitAt) > maxAge
}
