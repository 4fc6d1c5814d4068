// Package client assembles API calls with a fluent Builder and executes them
// through an injected network executor, optionally paginated and retried on
// rate limiting.
package client

import (
	"context"
	"fmt"

	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for builder executions.
var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_executions_total",
		Help: "Total builder executions by mode and outcome",
	}, []string{"mode", "outcome"})

	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqkit_execution_duration_seconds",
		Help:    "Builder execution duration in seconds by mode, including retries and all pages",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"mode"})
)

const (
	modeSingle = "single"
	modeAll    = "all"

	outcomeSuccess      = "success"
	outcomePrecondition = string(ErrorClassPrecondition)
)

// Node identifies the caller on whose behalf requests are made.
type Node struct {
	ID   string
	Name string
	Type string
}

// String implements fmt.Stringer.
func (n Node) String() string {
	switch {
	case n.Name != "" && n.Type != "":
		return fmt.Sprintf("%s (%s)", n.Name, n.Type)
	case n.Name != "":
		return n.Name
	case n.ID != "":
		return n.ID
	default:
		return "unknown node"
	}
}

// Requester performs network calls, with or without a named credential.
type Requester interface {
	Request(ctx context.Context, t request.Template) (any, error)
	RequestWithAuthentication(ctx context.Context, credentialType string, t request.Template) (any, error)
}

// ExecutionContext is what a Builder needs from its surroundings.
type ExecutionContext interface {
	Requester
	Node() Node
}

// Client binds a Node to a Requester and hands out Builders.
type Client struct {
	node      Node
	requester Requester
	opts      []BuilderOption
}

// New creates a Client. opts are applied to every Builder it creates.
func New(node Node, requester Requester, opts ...BuilderOption) *Client {
	return &Client{node: node, requester: requester, opts: opts}
}

// Node implements ExecutionContext.
func (c *Client) Node() Node {
	return c.node
}

// Request implements Requester.
func (c *Client) Request(ctx context.Context, t request.Template) (any, error) {
	return c.requester.Request(ctx, t)
}

// RequestWithAuthentication implements Requester.
func (c *Client) RequestWithAuthentication(ctx context.Context, credentialType string, t request.Template) (any, error) {
	return c.requester.RequestWithAuthentication(ctx, credentialType, t)
}

// NewRequest starts a Builder for one logical call chain.
func (c *Client) NewRequest() *Builder {
	return NewBuilder(c, c.opts...)
}
