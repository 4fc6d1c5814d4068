package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/reqkit/pkg/client"
	"github.com/Sternrassler/reqkit/pkg/logging"
	"github.com/Sternrassler/reqkit/pkg/metrics"
	"github.com/Sternrassler/reqkit/pkg/pagination"
	"github.com/Sternrassler/reqkit/pkg/ratelimit"
	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/Sternrassler/reqkit/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fetches over HTTP",
		Long: `Start an HTTP server exposing:

  GET  /health                 liveness probe
  GET  /metrics                Prometheus metrics
  POST /v1/fetch               execute a request, optionally paginated and retried
  GET  /v1/ratelimit/{scope}   recorded rate-limit state (requires Redis)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("redis-url", "", "Redis URL for the rate-limit tracker, e.g. redis://localhost:6379/0")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("redis.url", cmd.Flags().Lookup("redis-url"))

	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger("server")

	tcfg, err := transportConfig(ctx)
	if err != nil {
		return err
	}
	executor, err := transport.New(tcfg)
	if err != nil {
		return err
	}

	var tracker *ratelimit.Tracker
	if redisURL := viper.GetString("redis.url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
		tracker = ratelimit.NewTracker(redisClient, logging.NewLogger("ratelimit-tracker"))
	}

	srv := &http.Server{
		Addr:              viper.GetString("addr"),
		Handler:           newServer(executor, tracker, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("tracker", tracker != nil).Msg("Starting reqkit server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// server handles the HTTP API.
type server struct {
	requester client.Requester
	tracker   *ratelimit.Tracker
	logger    zerolog.Logger
}

func newServer(requester client.Requester, tracker *ratelimit.Tracker, logger zerolog.Logger) *server {
	return &server{requester: requester, tracker: tracker, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /v1/fetch", s.handleFetch)
	mux.HandleFunc("GET /v1/ratelimit/{scope}", s.handleRateLimitState)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fetchRequest is the body of POST /v1/fetch.
type fetchRequest struct {
	Request struct {
		BaseURL    string            `json:"baseUrl"`
		URL        string            `json:"url"`
		Method     string            `json:"method"`
		Body       any               `json:"body"`
		Query      map[string]any    `json:"query"`
		Headers    map[string]string `json:"headers"`
		Credential string            `json:"credential"`
	} `json:"request"`
	Pagination *pagination.Spec  `json:"pagination"`
	RateLimit  *ratelimit.Config `json:"rateLimit"`
	Node       *client.Node      `json:"node"`
	Scope      string            `json:"scope"`
}

type fetchResponse struct {
	Result any   `json:"result,omitempty"`
	Items  []any `json:"items,omitempty"`
	Count  int   `json:"count"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Class      string `json:"class,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxFetchRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Request.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request.url is required"})
		return
	}

	node := client.Node{ID: "http", Name: "reqkit serve", Type: "http"}
	if req.Node != nil {
		node = *req.Node
	}

	var opts []client.BuilderOption
	if req.RateLimit != nil && s.tracker != nil {
		scope := req.Scope
		if scope == "" {
			scope = scopeOf(req.Request.BaseURL, req.Request.URL)
		}
		opts = append(opts, client.WithRetryOptions(ratelimit.WithObserver(s.tracker.Observer(scope))))
	}

	b := client.New(node, s.requester, opts...).NewRequest().
		BaseURL(req.Request.BaseURL).
		Endpoint(req.Request.URL).
		Body(req.Request.Body).
		Query(req.Request.Query).
		Headers(req.Request.Headers)
	if req.Request.Method != "" {
		b.Method(req.Request.Method)
	}
	if req.Request.Credential != "" {
		b.WithAuthentication(req.Request.Credential)
	}
	if req.RateLimit != nil {
		b.WithRateLimiting(*req.RateLimit)
	}

	if req.Pagination == nil {
		result, err := b.Execute(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fetchResponse{Result: request.BodyOf(result), Count: 1})
		return
	}

	cfg, err := req.Pagination.Config()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	items, err := b.WithPagination(cfg).ExecuteAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Items: items, Count: len(items)})
}

// writeError maps execution failures to gateway responses.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	resp := errorResponse{Error: err.Error(), Class: string(client.Classify(err))}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		resp.StatusCode = apiErr.StatusCode()
	}

	switch {
	case resp.Class == string(client.ErrorClassPrecondition):
		status = http.StatusBadRequest
	case resp.Class == string(client.ErrorClassRateLimit):
		status = http.StatusTooManyRequests
	case resp.Class == string(client.ErrorClassCanceled):
		status = http.StatusGatewayTimeout
	}

	s.logger.Warn().Err(err).Int("status", status).Msg("Fetch failed")
	writeJSON(w, status, resp)
}

func (s *server) handleRateLimitState(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "rate-limit tracker requires --redis-url"})
		return
	}

	scope := r.PathValue("scope")
	state, err := s.tracker.GetState(r.Context(), scope)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", scope).Msg("Failed to read rate limit state")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":         state,
		"blocked":       state.IsBlocked(),
		"stale":         state.IsStale(rateLimitStaleAfter),
		"resetInMillis": state.TimeUntilReset().Milliseconds(),
	})
}

// scopeOf defaults the tracker scope to the API host.
func scopeOf(baseURL, endpoint string) string {
	for _, raw := range []string{endpoint, baseURL} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
