package pagination

import (
	"context"
	"errors"

	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_pagination_pages_total",
		Help: "Total number of pages fetched by strategy",
	}, []string{"strategy"})

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_pagination_items_total",
		Help: "Total number of items collected by strategy",
	}, []string{"strategy"})

	ceilingHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_pagination_ceiling_hits_total",
		Help: "Total number of paginations stopped by MaxPages while more data was reported",
	}, []string{"strategy"})
)

var (
	// ErrNoConfig is returned by FetchAll when cfg is nil.
	ErrNoConfig = errors.New("pagination config is required")

	// ErrTokenPathsRequired is returned before any request when a TokenConfig
	// lacks TokenPath or HasMorePath.
	ErrTokenPathsRequired = errors.New("token pagination requires tokenPath and hasMorePath")

	// ErrFullResponseRequired is returned when the executor ignores
	// ReturnFullResponse for link-header pagination.
	ErrFullResponseRequired = errors.New("link-header pagination requires the executor to return a full response")

	// ErrBodyNotObject is returned when token pagination cannot add variables
	// to a non-object request body.
	ErrBodyNotObject = errors.New("token pagination requires an object request body")
)

// FetchAll fetches every page of base using the strategy selected by cfg and
// returns the accumulated items. exec is called once per page, in order.
func FetchAll(ctx context.Context, base request.Template, cfg Config, exec request.Executor) ([]any, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg.fetchAll(ctx, base, exec)
}

// collector accumulates items across pages and reports progress.
type collector struct {
	strategy Strategy
	logger   zerolog.Logger
	items    []any
	pages    int
}

func newCollector(strategy Strategy) *collector {
	return &collector{
		strategy: strategy,
		logger:   log.With().Str("component", "pagination").Str("strategy", string(strategy)).Logger(),
		items:    make([]any, 0),
	}
}

// add records one fetched page and its items.
func (c *collector) add(items []any) {
	c.pages++
	c.items = append(c.items, items...)

	pagesTotal.WithLabelValues(string(c.strategy)).Inc()
	itemsTotal.WithLabelValues(string(c.strategy)).Add(float64(len(items)))

	c.logger.Debug().
		Int("page", c.pages).
		Int("items", len(items)).
		Int("total", len(c.items)).
		Msg("Page fetched")
}

// ceiling records that MaxPages stopped a pagination with data left.
func (c *collector) ceiling(maxPages int) {
	ceilingHitsTotal.WithLabelValues(string(c.strategy)).Inc()
	c.logger.Warn().
		Int("max_pages", maxPages).
		Int("items", len(c.items)).
		Msg("Pagination stopped at max pages while more data was reported")
}

func (c *collector) done() []any {
	c.logger.Debug().
		Int("pages", c.pages).
		Int("items", len(c.items)).
		Msg("Pagination complete")
	return c.items
}
