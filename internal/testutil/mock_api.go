// Package testutil provides a configurable mock API server for reqkit tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   map[string]any
}

// MockAPI is a configurable mock API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		}
		if data, err := io.ReadAll(r.Body); err == nil {
			if len(data) > 0 {
				_ = json.Unmarshal(data, &rec.Body)
			}
			r.Body = io.NopCloser(bytes.NewReader(data))
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, rec)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			writeJSON(w, http.StatusNotFound, nil, map[string]any{"error": "not found"})
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	})
}

// Requests returns a copy of the recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// ServeOffsetPages serves pages Airtable style: {"records": [...], "offset": "<n>"}.
// The offset of the last page is omitted.
func (m *MockAPI) ServeOffsetPages(path string, pages [][]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if token := r.URL.Query().Get("offset"); token != "" {
			idx, _ = strconv.Atoi(token)
		}
		body := map[string]any{"records": pageAt(pages, idx)}
		if idx+1 < len(pages) {
			body["offset"] = strconv.Itoa(idx + 1)
		}
		writeJSON(w, http.StatusOK, nil, body)
	})
}

// ServeCursorPages serves pages Slack style:
// {"members": [...], "response_metadata": {"next_cursor": "<n>"}}.
func (m *MockAPI) ServeCursorPages(path string, pages [][]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			idx, _ = strconv.Atoi(cursor)
		}
		next := ""
		if idx+1 < len(pages) {
			next = strconv.Itoa(idx + 1)
		}
		writeJSON(w, http.StatusOK, nil, map[string]any{
			"members":           pageAt(pages, idx),
			"response_metadata": map[string]any{"next_cursor": next},
		})
	})
}

// ServeLinkPages serves bare array pages GitHub style, advertising the next
// page in the Link header.
func (m *MockAPI) ServeLinkPages(path string, pages [][]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		headers := map[string]string{}
		if page < len(pages) {
			headers["Link"] = fmt.Sprintf(`<%s%s?page=%d>; rel="next", <%s%s?page=%d>; rel="last"`,
				m.URL(), path, page+1, m.URL(), path, len(pages))
		} else if page > 1 {
			headers["Link"] = fmt.Sprintf(`<%s%s?page=%d>; rel="prev"`, m.URL(), path, page-1)
		}
		writeJSON(w, http.StatusOK, headers, pageAt(pages, page-1))
	})
}

// ServeGraphQLPages serves a Relay connection named connection:
// {"data": {connection: {"nodes": [...], "pageInfo": {"endCursor", "hasNextPage"}}}}.
// The "after" variable selects the page.
func (m *MockAPI) ServeGraphQLPages(path, connection string, pages [][]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		idx := 0
		if after, ok := req.Variables["after"].(string); ok {
			idx, _ = strconv.Atoi(after)
		}
		writeJSON(w, http.StatusOK, nil, map[string]any{
			"data": map[string]any{
				connection: map[string]any{
					"nodes": pageAt(pages, idx),
					"pageInfo": map[string]any{
						"endCursor":   strconv.Itoa(idx + 1),
						"hasNextPage": idx+1 < len(pages),
					},
				},
			},
		})
	})
}

// RateLimitThen answers the first failures requests on path with 429 and the
// given Retry-After value ("" omits the header), then serves next.
func (m *MockAPI) RateLimitThen(path string, failures int, retryAfter string, next http.HandlerFunc) {
	var mu sync.Mutex
	seen := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen++
		limited := seen <= failures
		mu.Unlock()

		if limited {
			headers := map[string]string{}
			if retryAfter != "" {
				headers["Retry-After"] = retryAfter
			}
			writeJSON(w, http.StatusTooManyRequests, headers, map[string]any{"error": "rate limit exceeded"})
			return
		}
		next(w, r)
	})
}

// JSONHandler returns a handler that always writes body with status 200.
func JSONHandler(body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, nil, body)
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	headers := map[string]string{"Content-Type": "application/json; charset=utf-8"}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// Items returns n numbered pages of size items each, e.g. {"id": "p1-2"}.
func Items(pages, size int) [][]any {
	out := make([][]any, pages)
	for p := range out {
		out[p] = make([]any, size)
		for i := range out[p] {
			out[p][i] = map[string]any{"id": fmt.Sprintf("p%d-%d", p+1, i+1)}
		}
	}
	return out
}

func pageAt(pages [][]any, idx int) []any {
	if idx < 0 || idx >= len(pages) {
		return []any{}
	}
	return pages[idx]
}

func writeJSON(w http.ResponseWriter, status int, headers map[string]string, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
