// Package transport provides the default network executor: it turns a
// request.Template into an HTTP call and decodes the JSON response.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for HTTP calls.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqkit_http_requests_total",
		Help: "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqkit_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})
)

// HTTPExecutor sends request templates over HTTP.
// It is safe for concurrent use.
type HTTPExecutor struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	credentials map[string]Authenticator
	logger      zerolog.Logger
}

// New creates an HTTPExecutor.
func New(cfg Config) (*HTTPExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultConfig().Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPExecutor{
		client:      httpClient,
		limiter:     limiter,
		userAgent:   cfg.UserAgent,
		credentials: maps.Clone(cfg.Credentials),
		logger:      log.With().Str("component", "transport").Logger(),
	}, nil
}

// Request sends t without credentials.
func (e *HTTPExecutor) Request(ctx context.Context, t request.Template) (any, error) {
	return e.do(ctx, t, nil)
}

// RequestWithAuthentication sends t decorated by the authenticator
// registered for credentialType.
func (e *HTTPExecutor) RequestWithAuthentication(ctx context.Context, credentialType string, t request.Template) (any, error) {
	auth, ok := e.credentials[credentialType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCredential, credentialType)
	}
	return e.do(ctx, t, auth)
}

func (e *HTTPExecutor) do(ctx context.Context, t request.Template, auth Authenticator) (any, error) {
	req, err := e.newRequest(ctx, t)
	if err != nil {
		return nil, err
	}

	if auth != nil {
		if err := auth.Authenticate(ctx, req); err != nil {
			return nil, fmt.Errorf("authenticate request: %w", err)
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for request slot: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	httpRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		httpRequestsTotal.WithLabelValues(req.Method, "network_error").Inc()
		e.logger.Error().Err(err).Str("url", req.URL.Redacted()).Msg("HTTP request failed")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	httpRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	body := decodeBody(raw)

	e.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP request completed")

	if resp.StatusCode >= 400 {
		return nil, &request.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			Headers:    resp.Header,
			Body:       body,
		}
	}

	if t.ReturnFullResponse {
		return &request.FullResponse{
			Body:       body,
			Headers:    resp.Header,
			StatusCode: resp.StatusCode,
		}, nil
	}
	return body, nil
}

// newRequest builds the *http.Request for t.
func (e *HTTPExecutor) newRequest(ctx context.Context, t request.Template) (*http.Request, error) {
	target, err := resolveURL(t.BaseURL, t.URL)
	if err != nil {
		return nil, err
	}
	if len(t.Query) > 0 {
		q := target.Query()
		for k, v := range t.Query {
			addQueryValue(q, k, v)
		}
		target.RawQuery = q.Encode()
	}

	method := t.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if t.Body != nil {
		data, err := encodeBody(t.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if t.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// resolveURL joins base and endpoint. An absolute endpoint ignores base.
func resolveURL(base, endpoint string) (*url.URL, error) {
	raw := endpoint
	if base != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
	}
	if raw == "" {
		return nil, fmt.Errorf("request URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse request URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("request URL %q must be absolute", raw)
	}
	return u, nil
}

// addQueryValue adds v under key, repeating the key for slices.
func addQueryValue(q url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
	case []any:
		for _, item := range val {
			addQueryValue(q, key, item)
		}
	case []string:
		for _, item := range val {
			q.Add(key, item)
		}
	case string:
		q.Add(key, val)
	case float64:
		q.Add(key, strconv.FormatFloat(val, 'f', -1, 64))
	default:
		q.Add(key, fmt.Sprint(val))
	}
}

// encodeBody JSON-encodes body. Raw bytes and strings are sent as is.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return data, nil
}

// decodeBody parses JSON and falls back to the raw text.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
