package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMaxRetriesExceeded is returned if the retry loop ends without a result.
// The loop always returns or fails before that, so seeing it means a bug.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// StatusTooManyRequests is the HTTP code that marks a rate-limit error.
const StatusTooManyRequests = "429"

// httpCoder is implemented by errors that carry the HTTP status as a string.
type httpCoder interface {
	HTTPCode() string
}

// headerCarrier is implemented by errors that carry the failed response headers.
type headerCarrier interface {
	ResponseHeaders() http.Header
}

// IsRateLimitError reports whether err (or an error it wraps) exposes
// HTTPCode() == "429".
func IsRateLimitError(err error) bool {
	var coder httpCoder
	if !errors.As(err, &coder) {
		return false
	}
	return coder.HTTPCode() == StatusTooManyRequests
}

// retryAfter extracts the server's wait hint from the error's response headers.
// A leading integer is read as seconds ("5.5" waits 5s). HTTP dates are
// accepted as well; a date in the past means no wait.
func retryAfter(err error, headerName string) (time.Duration, bool) {
	var carrier headerCarrier
	if !errors.As(err, &carrier) {
		return 0, false
	}

	value, ok := lookupHeader(carrier.ResponseHeaders(), headerName)
	if !ok {
		return 0, false
	}

	if seconds, ok := leadingInt(value); ok {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds) * 1000 * time.Millisecond, true
	}

	if at, err := http.ParseTime(value); err == nil {
		delay := time.Until(at)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}

	return 0, false
}

// lookupHeader finds a header case-insensitively, also for maps that were
// not built with canonical keys.
func lookupHeader(headers http.Header, name string) (string, bool) {
	if v := headers.Get(name); v != "" {
		return strings.TrimSpace(v), true
	}
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 && values[0] != "" {
			return strings.TrimSpace(values[0]), true
		}
	}
	return "", false
}

// leadingInt parses the optionally signed run of digits at the start of s.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
