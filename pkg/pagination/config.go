package pagination

import (
	"context"

	"github.com/Sternrassler/reqkit/pkg/request"
)

// Strategy names a pagination protocol.
type Strategy string

const (
	StrategyOffset     Strategy = "offset"
	StrategyCursor     Strategy = "cursor"
	StrategyLinkHeader Strategy = "link-header"
	StrategyToken      Strategy = "token"
)

// Defaults shared by all strategies.
const (
	DefaultPageSize      = 100
	DefaultTokenPageSize = 50
	DefaultMaxPages      = 1000
)

// Config selects a strategy and carries its settings.
// The set of implementations is closed: OffsetConfig, CursorConfig,
// LinkHeaderConfig and TokenConfig.
type Config interface {
	// Strategy returns the protocol implemented by the config.
	Strategy() Strategy

	fetchAll(ctx context.Context, base request.Template, exec request.Executor) ([]any, error)
}

// Options are the settings every strategy shares.
type Options struct {
	// ItemsPath is the dot path to the item list; "" means the body is the list.
	ItemsPath string

	// PageSize is the number of items requested per page.
	PageSize int

	// MaxPages caps the number of requests regardless of what the server reports.
	MaxPages int
}

func (o Options) withDefaults(pageSize int) Options {
	if o.PageSize <= 0 {
		o.PageSize = pageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// OffsetConfig paginates with an opaque offset token returned in the body.
type OffsetConfig struct {
	Options

	// OffsetResponsePath locates the next token in the body. Default "offset".
	OffsetResponsePath string

	// OffsetQueryParam carries the token on the next request. Default "offset".
	OffsetQueryParam string

	// PageSizeParam carries PageSize. Default "pageSize".
	PageSizeParam string
}

// Strategy implements Config.
func (OffsetConfig) Strategy() Strategy { return StrategyOffset }

func (c OffsetConfig) withDefaults() OffsetConfig {
	c.Options = c.Options.withDefaults(DefaultPageSize)
	if c.OffsetResponsePath == "" {
		c.OffsetResponsePath = "offset"
	}
	if c.OffsetQueryParam == "" {
		c.OffsetQueryParam = "offset"
	}
	if c.PageSizeParam == "" {
		c.PageSizeParam = "pageSize"
	}
	return c
}

// CursorConfig paginates with a cursor returned in the body.
type CursorConfig struct {
	Options

	// CursorPath locates the next cursor. Default "response_metadata.next_cursor".
	CursorPath string

	// CursorQueryParam carries the cursor on the next request. Default "cursor".
	CursorQueryParam string

	// LimitParam carries PageSize. Default "limit".
	LimitParam string
}

// Strategy implements Config.
func (CursorConfig) Strategy() Strategy { return StrategyCursor }

func (c CursorConfig) withDefaults() CursorConfig {
	c.Options = c.Options.withDefaults(DefaultPageSize)
	if c.CursorPath == "" {
		c.CursorPath = "response_metadata.next_cursor"
	}
	if c.CursorQueryParam == "" {
		c.CursorQueryParam = "cursor"
	}
	if c.LimitParam == "" {
		c.LimitParam = "limit"
	}
	return c
}

// LinkHeaderConfig paginates numbered pages and follows the Link header.
type LinkHeaderConfig struct {
	Options

	// PerPageParam carries PageSize. Default "per_page".
	PerPageParam string
}

// Strategy implements Config.
func (LinkHeaderConfig) Strategy() Strategy { return StrategyLinkHeader }

func (c LinkHeaderConfig) withDefaults() LinkHeaderConfig {
	c.Options = c.Options.withDefaults(DefaultPageSize)
	if c.PerPageParam == "" {
		c.PerPageParam = "per_page"
	}
	return c
}

// TokenConfig paginates GraphQL connections through the "first" and "after"
// variables. TokenPath and HasMorePath have no defaults.
type TokenConfig struct {
	Options

	// TokenPath locates the end cursor, e.g. "data.issues.pageInfo.endCursor".
	TokenPath string

	// HasMorePath locates the has-more flag, e.g. "data.issues.pageInfo.hasNextPage".
	HasMorePath string
}

// Strategy implements Config.
func (TokenConfig) Strategy() Strategy { return StrategyToken }

func (c TokenConfig) withDefaults() TokenConfig {
	c.Options = c.Options.withDefaults(DefaultTokenPageSize)
	return c
}
