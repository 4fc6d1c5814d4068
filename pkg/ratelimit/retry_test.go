package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/rs/zerolog"
)

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type recordingObserver struct {
	events []Event
}

func (o *recordingObserver) OnRateLimited(ctx context.Context, ev Event) {
	o.events = append(o.events, ev)
}

func rateLimitErr(headers map[string]string) *request.HTTPError {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &request.HTTPError{
		StatusCode: http.StatusTooManyRequests,
		Status:     "429 Too Many Requests",
		Method:     "GET",
		URL:        "https://api.example.com/items",
		Headers:    h,
	}
}

func newTestRetrier(cfg Config, sleeper *recordingSleep, opts ...Option) *Retrier {
	opts = append([]Option{
		WithSleep(sleeper.sleep),
		WithLogger(zerolog.Nop()),
	}, opts...)
	return New(cfg, opts...)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryAfterHeaderName != "retry-after" {
		t.Errorf("RetryAfterHeaderName = %q, want %q", cfg.RetryAfterHeaderName, "retry-after")
	}
	if cfg.InitialDelay != 1000*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper)

	calls := 0
	got, err := Do(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want %q", got, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("sleeps = %v, want none", sleeper.delays)
	}
}

func TestDo_RetryAfterHeader(t *testing.T) {
	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper)

	calls := 0
	got, err := Do(context.Background(), r, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, rateLimitErr(map[string]string{"retry-after": "5"})
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Do() = %d, want 42", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 5000*time.Millisecond {
		t.Errorf("delays = %v, want [5s]", sleeper.delays)
	}
}

func TestDo_ExponentialBackoffWithoutHeader(t *testing.T) {
	sleeper := &recordingSleep{}
	cfg := DefaultConfig()
	cfg.InitialDelay = 1000 * time.Millisecond
	cfg.BackoffMultiplier = 2
	r := newTestRetrier(cfg, sleeper)

	calls := 0
	_, err := Do(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		if calls <= 2 {
			return nil, rateLimitErr(nil)
		}
		return "done", nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, sleeper.delays[i], want[i])
		}
	}
}

func TestDo_Exhausted(t *testing.T) {
	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper)

	rlErr := rateLimitErr(nil)
	calls := 0
	_, err := Do(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		return nil, rlErr
	})

	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if len(sleeper.delays) != 3 {
		t.Errorf("sleeps = %d, want 3", len(sleeper.delays))
	}
	if err != rlErr {
		t.Errorf("Do() error = %v, want the original rate limit error", err)
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("exhaustion must not surface the generic fallback error")
	}
}

func TestDo_NonRateLimitErrorNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "plain error", err: errors.New("boom")},
		{name: "server error", err: &request.HTTPError{StatusCode: http.StatusInternalServerError}},
		{name: "bad request", err: &request.HTTPError{StatusCode: http.StatusBadRequest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &recordingSleep{}
			r := newTestRetrier(DefaultConfig(), sleeper)

			calls := 0
			_, err := Do(context.Background(), r, func(ctx context.Context) (any, error) {
				calls++
				return nil, tt.err
			})

			if err != tt.err {
				t.Errorf("Do() error = %v, want %v", err, tt.err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("sleeps = %v, want none", sleeper.delays)
			}
		})
	}
}

func TestDo_WrappedRateLimitError(t *testing.T) {
	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper)

	calls := 0
	_, err := Do(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("list issues: %w", rateLimitErr(map[string]string{"Retry-After": "1"}))
		}
		return nil, nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != time.Second {
		t.Errorf("delays = %v, want [1s]", sleeper.delays)
	}
}

func TestDo_ZeroMaxRetries(t *testing.T) {
	sleeper := &recordingSleep{}
	cfg := DefaultConfig()
	cfg.MaxRetries = NoRetries
	r := newTestRetrier(cfg, sleeper)

	calls := 0
	_, err := Do(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		return nil, rateLimitErr(nil)
	})

	if !IsRateLimitError(err) {
		t.Errorf("Do() error = %v, want rate limit error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Hour
	r := New(cfg, WithLogger(zerolog.Nop()))

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, r, func(ctx context.Context) (any, error) {
			calls++
			return nil, rateLimitErr(nil)
		})
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ObserverEvents(t *testing.T) {
	sleeper := &recordingSleep{}
	observer := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	r := newTestRetrier(cfg, sleeper, WithObserver(observer))

	_, _ = Do(context.Background(), r, func(ctx context.Context) (any, error) {
		return nil, rateLimitErr(map[string]string{"retry-after": "2"})
	})

	if len(observer.events) != 2 {
		t.Fatalf("events = %d, want 2", len(observer.events))
	}

	first := observer.events[0]
	if first.Exhausted || first.Delay != 2*time.Second || first.Source != SourceHeader {
		t.Errorf("first event = %+v", first)
	}

	last := observer.events[1]
	if !last.Exhausted || last.Attempt != 1 {
		t.Errorf("last event = %+v, want exhausted at attempt 1", last)
	}
}

func TestDelay(t *testing.T) {
	tests := []struct {
		name       string
		headerName string
		headers    http.Header
		attempt    int
		want       time.Duration
		wantSource string
	}{
		{
			name:       "numeric header",
			headerName: "retry-after",
			headers:    http.Header{"Retry-After": {"7"}},
			want:       7 * time.Second,
			wantSource: SourceHeader,
		},
		{
			name:       "non canonical header key",
			headerName: "retry-after",
			headers:    http.Header{"retry-after": {"3"}},
			want:       3 * time.Second,
			wantSource: SourceHeader,
		},
		{
			name:       "custom header name",
			headerName: "x-ratelimit-reset",
			headers:    http.Header{"X-Ratelimit-Reset": {"10"}},
			want:       10 * time.Second,
			wantSource: SourceHeader,
		},
		{
			name:       "header under another name is ignored",
			headerName: "x-ratelimit-reset",
			headers:    http.Header{"Retry-After": {"10"}},
			attempt:    1,
			want:       2 * time.Second,
			wantSource: SourceBackoff,
		},
		{
			name:       "date in the past",
			headerName: "retry-after",
			headers:    http.Header{"Retry-After": {"Wed, 21 Oct 2015 07:28:00 GMT"}},
			want:       0,
			wantSource: SourceHeader,
		},
		{
			name:       "fractional seconds use the integer part",
			headerName: "retry-after",
			headers:    http.Header{"Retry-After": {"5.5"}},
			want:       5 * time.Second,
			wantSource: SourceHeader,
		},
		{
			name:       "negative seconds mean no wait",
			headerName: "retry-after",
			headers:    http.Header{"Retry-After": {"-4"}},
			want:       0,
			wantSource: SourceHeader,
		},
		{
			name:       "garbage falls back to backoff",
			headerName: "retry-after",
			headers:    http.Header{"Retry-After": {"soon"}},
			attempt:    2,
			want:       4 * time.Second,
			wantSource: SourceBackoff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RetryAfterHeaderName = tt.headerName
			r := New(cfg, WithLogger(zerolog.Nop()))

			err := &request.HTTPError{StatusCode: http.StatusTooManyRequests, Headers: tt.headers}
			got, source := r.delay(err, tt.attempt)
			if got != tt.want {
				t.Errorf("delay() = %v, want %v", got, tt.want)
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("429"), want: false},
		{name: "429", err: &request.HTTPError{StatusCode: 429}, want: true},
		{name: "wrapped 429", err: fmt.Errorf("call: %w", &request.HTTPError{StatusCode: 429}), want: true},
		{name: "503", err: &request.HTTPError{StatusCode: 503}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	sleeper := &recordingSleep{}
	r := newTestRetrier(DefaultConfig(), sleeper)

	var seen []request.Template
	exec := func(ctx context.Context, tmpl request.Template) (any, error) {
		seen = append(seen, tmpl)
		if len(seen) == 1 {
			return nil, rateLimitErr(nil)
		}
		return map[string]any{"ok": true}, nil
	}

	resp, err := r.Wrap(exec)(context.Background(), request.Template{URL: "/items", Method: "GET"})
	if err != nil {
		t.Fatalf("wrapped executor error = %v", err)
	}
	if resp.(map[string]any)["ok"] != true {
		t.Errorf("response = %v", resp)
	}
	if len(seen) != 2 || seen[1].URL != "/items" {
		t.Errorf("executor calls = %+v, want the same template twice", seen)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"5", 5, true},
		{"5.5", 5, true},
		{"120s", 120, true},
		{"+3", 3, true},
		{"-2", -2, true},
		{"", 0, false},
		{"-", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := leadingInt(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("leadingInt(%q) = %d, %v, want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
