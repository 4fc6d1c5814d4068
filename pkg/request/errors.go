package request

import (
	"fmt"
	"net/http"
	"strconv"
)

// HTTPError is returned by executors when the server answers with a status >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Headers    http.Header
	Body       any
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// HTTPCode returns the status code as a string ("429", "500", ...).
func (e *HTTPError) HTTPCode() string {
	return strconv.Itoa(e.StatusCode)
}

// ResponseHeaders returns the headers of the failed response.
func (e *HTTPError) ResponseHeaders() http.Header {
	return e.Headers
}
