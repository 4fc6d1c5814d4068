//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_EmptyScope(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))

	state, err := tracker.GetState(context.Background(), "api.github.com")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Hits != 0 {
		t.Errorf("Hits = %d, want 0", state.Hits)
	}
	if state.IsBlocked() {
		t.Error("empty scope should not be blocked")
	}
}

func TestTracker_Integration_RecordAndGet(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	if err := tracker.Record(ctx, "api.github.com", 30*time.Second); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := tracker.Record(ctx, "api.github.com", 60*time.Second); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	state, err := tracker.GetState(ctx, "api.github.com")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}

	if state.Hits != 2 {
		t.Errorf("Hits = %d, want 2", state.Hits)
	}
	if !state.IsBlocked() {
		t.Error("state should be blocked after a 60s hint")
	}

	remaining := state.TimeUntilReset()
	tolerance := 5 * time.Second
	if remaining < 60*time.Second-tolerance || remaining > 60*time.Second {
		t.Errorf("TimeUntilReset = %v, want approximately 60s", remaining)
	}

	other, err := tracker.GetState(ctx, "slack.com")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if other.Hits != 0 {
		t.Errorf("scopes must be isolated, got %d hits", other.Hits)
	}
}

func TestTracker_Integration_ObserverAndReset(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper, WithObserver(tracker.Observer("notion")))

	_, _ = Do(ctx, r, func(ctx context.Context) (any, error) {
		return nil, rateLimitErr(map[string]string{"retry-after": "5"})
	})

	state, err := tracker.GetState(ctx, "notion")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Hits != 4 {
		t.Errorf("Hits = %d, want 4 (3 retries + exhaustion)", state.Hits)
	}

	if err := tracker.Reset(ctx, "notion"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	state, err = tracker.GetState(ctx, "notion")
	if err != nil {
		t.Fatalf("GetState() after reset error = %v", err)
	}
	if state.Hits != 0 {
		t.Errorf("Hits after reset = %d, want 0", state.Hits)
	}
}
