package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Sternrassler/reqkit/pkg/pagination"
	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/Sternrassler/reqkit/pkg/transport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"rate limit", &request.HTTPError{StatusCode: http.StatusTooManyRequests}, ErrorClassRateLimit},
		{"client", &request.HTTPError{StatusCode: http.StatusForbidden}, ErrorClassClient},
		{"server", &request.HTTPError{StatusCode: http.StatusBadGateway}, ErrorClassServer},
		{"wrapped server", fmt.Errorf("page 2: %w", &request.HTTPError{StatusCode: 503}), ErrorClassServer},
		{"canceled", fmt.Errorf("waiting: %w", context.Canceled), ErrorClassCanceled},
		{"deadline", context.DeadlineExceeded, ErrorClassCanceled},
		{"network", errors.New("connection refused"), ErrorClassNetwork},
		{"unknown credential", fmt.Errorf("%w: %q", transport.ErrUnknownCredential, "slackApi"), ErrorClassPrecondition},
		{"token paths", &APIError{Err: pagination.ErrTokenPathsRequired}, ErrorClassPrecondition},
		{"non-object body", pagination.ErrBodyNotObject, ErrorClassPrecondition},
		{"full response", fmt.Errorf("got %T: %w", "", pagination.ErrFullResponseRequired), ErrorClassPrecondition},
		{"pagination missing", ErrPaginationNotConfigured, ErrorClassPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	inner := errors.New("boom")
	err := &APIError{Node: Node{Name: "Get Channels", Type: "slack"}, Err: inner}

	if got, want := err.Error(), "Get Channels (slack): boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() = false, want true")
	}
	if err.StatusCode() != 0 {
		t.Errorf("StatusCode() = %d, want 0", err.StatusCode())
	}
}

func TestNode_String(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{Node{ID: "1", Name: "A", Type: "t"}, "A (t)"},
		{Node{ID: "1", Name: "A"}, "A"},
		{Node{ID: "1"}, "1"},
		{Node{}, "unknown node"},
	}

	for _, tt := range tests {
		if got := tt.node.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestClient_NewRequest(t *testing.T) {
	fake := newFake()
	fake.results = []any{"ok"}
	c := New(fake.node, fake)

	if c.Node() != fake.node {
		t.Errorf("Node() = %+v, want %+v", c.Node(), fake.node)
	}
	if _, err := c.NewRequest().Endpoint("/ping").Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0].URL != "/ping" {
		t.Errorf("calls = %+v", fake.calls)
	}
}
