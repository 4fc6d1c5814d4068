//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/reqkit/internal/testutil"
	"github.com/Sternrassler/reqkit/pkg/ratelimit"
	"github.com/Sternrassler/reqkit/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestServe_Integration_TrackerRecordsRetries(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockAPI()
	defer api.Close()
	api.RateLimitThen("/v1/issues", 2, "0", testutil.JSONHandler([]any{"i1", "i2"}))

	executor, err := transport.New(transport.DefaultConfig())
	if err != nil {
		t.Fatalf("transport.New() error = %v", err)
	}
	tracker := ratelimit.NewTracker(redisClient, zerolog.Nop())
	ts := httptest.NewServer(newServer(executor, tracker, zerolog.Nop()).routes())
	defer ts.Close()

	resp, body := postFetch(t, ts, map[string]any{
		"request":   map[string]any{"baseUrl": api.URL(), "url": "/v1/issues"},
		"rateLimit": map[string]any{"maxRetries": 3},
		"scope":     "issues-api",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status = %d, body = %v", resp.StatusCode, body)
	}

	stateResp, err := http.Get(ts.URL + "/v1/ratelimit/issues-api")
	if err != nil {
		t.Fatalf("GET ratelimit error = %v", err)
	}
	defer stateResp.Body.Close()

	var got struct {
		State ratelimit.State `json:"state"`
		Stale bool            `json:"stale"`
	}
	if err := json.NewDecoder(stateResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if got.State.Hits != 2 {
		t.Errorf("Hits = %d, want 2", got.State.Hits)
	}
	if got.Stale {
		t.Error("stale = true right after recording hits")
	}
	if got.State.Scope != "issues-api" {
		t.Errorf("Scope = %q, want issues-api", got.State.Scope)
	}
}

func TestServe_Integration_PaginatedFetchEveryStrategy(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.ServeOffsetPages("/offset", testutil.Items(3, 2))
	api.ServeCursorPages("/cursor", testutil.Items(3, 2))
	api.ServeLinkPages("/link", testutil.Items(3, 2))
	api.ServeGraphQLPages("/graphql", "issues", testutil.Items(3, 2))

	ts := newTestServer(t)

	tests := []struct {
		name    string
		request map[string]any
		spec    map[string]any
	}{
		{
			name:    "offset",
			request: map[string]any{"url": api.URL() + "/offset"},
			spec:    map[string]any{"strategy": "offset", "itemsPath": "records"},
		},
		{
			name:    "cursor",
			request: map[string]any{"url": api.URL() + "/cursor"},
			spec:    map[string]any{"strategy": "cursor", "itemsPath": "members"},
		},
		{
			name:    "link-header",
			request: map[string]any{"url": api.URL() + "/link"},
			spec:    map[string]any{"strategy": "link-header", "itemsPath": ""},
		},
		{
			name: "token",
			request: map[string]any{
				"url":    api.URL() + "/graphql",
				"method": "POST",
				"body":   map[string]any{"query": "query($first: Int, $after: String) { issues { nodes { id } } }"},
			},
			spec: map[string]any{
				"strategy":    "token",
				"itemsPath":   "data.issues.nodes",
				"tokenPath":   "data.issues.pageInfo.endCursor",
				"hasMorePath": "data.issues.pageInfo.hasNextPage",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postFetch(t, ts, map[string]any{"request": tt.request, "pagination": tt.spec})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
			}
			if body["count"] != 6.0 {
				t.Errorf("count = %v, want 6", body["count"])
			}
		})
	}
}
