package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/Sternrassler/reqkit/pkg/pagination"
	"github.com/Sternrassler/reqkit/pkg/ratelimit"
	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Builder assembles the options of one logical call chain.
//
// Chained calls mutate the builder in place, so a Builder must not be shared
// between concurrent requests. Build returns an independent Template.
type Builder struct {
	ec             ExecutionContext
	tmpl           request.Template
	credentialType string
	pagination     pagination.Config
	rateLimit      *ratelimit.Config
	retryOpts      []ratelimit.Option
	logger         zerolog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithRetryOptions passes options to the Retrier created when rate limiting
// is enabled, e.g. ratelimit.WithObserver.
func WithRetryOptions(opts ...ratelimit.Option) BuilderOption {
	return func(b *Builder) {
		b.retryOpts = append(b.retryOpts, opts...)
	}
}

// NewBuilder creates a Builder executing through ec. The method defaults to GET.
func NewBuilder(ec ExecutionContext, opts ...BuilderOption) *Builder {
	node := ec.Node()
	b := &Builder{
		ec:   ec,
		tmpl: request.Template{Method: http.MethodGet},
		logger: log.With().
			Str("component", "client").
			Str("node", node.String()).
			Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BaseURL sets the base URL the executor prepends to the endpoint.
func (b *Builder) BaseURL(url string) *Builder {
	b.tmpl.BaseURL = url
	return b
}

// Endpoint sets the endpoint path or absolute URL.
func (b *Builder) Endpoint(url string) *Builder {
	b.tmpl.URL = url
	return b
}

// Method sets the HTTP method.
func (b *Builder) Method(method string) *Builder {
	b.tmpl.Method = method
	return b
}

// Body sets the request body.
func (b *Builder) Body(body any) *Builder {
	b.tmpl.Body = body
	return b
}

// Query merges params into the query map.
func (b *Builder) Query(params map[string]any) *Builder {
	if b.tmpl.Query == nil {
		b.tmpl.Query = make(map[string]any, len(params))
	}
	for k, v := range params {
		b.tmpl.Query[k] = v
	}
	return b
}

// Headers merges headers into the header map.
func (b *Builder) Headers(headers map[string]string) *Builder {
	if b.tmpl.Headers == nil {
		b.tmpl.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		b.tmpl.Headers[k] = v
	}
	return b
}

// WithAuthentication routes calls through the authenticated executor using
// the named credential type.
func (b *Builder) WithAuthentication(credentialType string) *Builder {
	b.credentialType = credentialType
	return b
}

// WithPagination enables ExecuteAll with the given strategy.
func (b *Builder) WithPagination(cfg pagination.Config) *Builder {
	b.pagination = cfg
	return b
}

// WithRateLimiting retries rate-limited calls. Without an argument the
// default configuration is used; unset fields take their defaults.
func (b *Builder) WithRateLimiting(cfg ...ratelimit.Config) *Builder {
	resolved := ratelimit.DefaultConfig()
	if len(cfg) > 0 {
		resolved = cfg[0].WithDefaults()
	}
	b.rateLimit = &resolved
	return b
}

// Build returns the final request template.
// Empty object bodies and empty query maps are dropped, and GET requests
// never carry a body.
func (b *Builder) Build() request.Template {
	t := b.tmpl.Clone()

	if isEmptyObject(t.Body) {
		t.Body = nil
	}
	if len(t.Query) == 0 {
		t.Query = nil
	}
	if strings.EqualFold(t.Method, http.MethodGet) {
		t.Body = nil
	}

	return t
}

// isEmptyObject reports whether body is a map with no keys.
func isEmptyObject(body any) bool {
	if body == nil {
		return false
	}
	v := reflect.ValueOf(body)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Map && v.Len() == 0
}

// executor returns the per-call executor: authenticated when a credential
// type is set, retry-wrapped when rate limiting is enabled.
func (b *Builder) executor() request.Executor {
	exec := request.Executor(b.ec.Request)
	if b.credentialType != "" {
		credentialType := b.credentialType
		exec = func(ctx context.Context, t request.Template) (any, error) {
			return b.ec.RequestWithAuthentication(ctx, credentialType, t)
		}
	}

	if b.rateLimit != nil {
		opts := append([]ratelimit.Option{ratelimit.WithLogger(b.logger)}, b.retryOpts...)
		exec = ratelimit.New(*b.rateLimit, opts...).Wrap(exec)
	}

	return exec
}

// Execute performs a single call and returns the decoded response.
func (b *Builder) Execute(ctx context.Context) (any, error) {
	t := b.Build()
	start := time.Now()
	defer func() {
		executionDuration.WithLabelValues(modeSingle).Observe(time.Since(start).Seconds())
	}()

	b.logger.Debug().
		Str("method", t.Method).
		Str("url", t.URL).
		Bool("authenticated", b.credentialType != "").
		Bool("rate_limited", b.rateLimit != nil).
		Msg("Executing request")

	resp, err := b.executor()(ctx, t)
	if err != nil {
		return nil, b.fail(modeSingle, err)
	}

	executionsTotal.WithLabelValues(modeSingle, outcomeSuccess).Inc()
	return resp, nil
}

// ExecuteAll fetches every page with the configured pagination strategy.
// It fails with ErrPaginationNotConfigured before any call when
// WithPagination was not used.
func (b *Builder) ExecuteAll(ctx context.Context) ([]any, error) {
	if b.pagination == nil {
		executionsTotal.WithLabelValues(modeAll, outcomePrecondition).Inc()
		return nil, ErrPaginationNotConfigured
	}

	t := b.Build()
	start := time.Now()
	defer func() {
		executionDuration.WithLabelValues(modeAll).Observe(time.Since(start).Seconds())
	}()

	b.logger.Debug().
		Str("method", t.Method).
		Str("url", t.URL).
		Str("strategy", string(b.pagination.Strategy())).
		Interface("pagination", pagination.SpecOf(b.pagination)).
		Msg("Executing paginated request")

	items, err := pagination.FetchAll(ctx, t, b.pagination, b.executor())
	if err != nil {
		return nil, b.fail(modeAll, err)
	}

	executionsTotal.WithLabelValues(modeAll, outcomeSuccess).Inc()
	b.logger.Debug().Int("items", len(items)).Msg("Paginated request complete")
	return items, nil
}

// fail records and wraps an execution error.
func (b *Builder) fail(mode string, err error) error {
	class := Classify(err)
	executionsTotal.WithLabelValues(mode, string(class)).Inc()

	b.logger.Warn().
		Err(err).
		Str("mode", mode).
		Str("error_class", string(class)).
		Msg("Request failed")

	return &APIError{Node: b.ec.Node(), Err: err}
}

// ExecuteAs runs b.Execute and decodes the result into T.
func ExecuteAs[T any](ctx context.Context, b *Builder) (T, error) {
	var out T
	resp, err := b.Execute(ctx)
	if err != nil {
		return out, err
	}
	if err := convert(resp, &out); err != nil {
		return out, err
	}
	return out, nil
}

// ExecuteAllAs runs b.ExecuteAll and decodes every item into T.
func ExecuteAllAs[T any](ctx context.Context, b *Builder) ([]T, error) {
	items, err := b.ExecuteAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	if err := convert(items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// convert re-encodes a decoded JSON value into a typed destination.
func convert(value any, dst any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode response into %T: %w", dst, err)
	}
	return nil
}
