package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/reqkit/pkg/pagination"
	"github.com/Sternrassler/reqkit/pkg/request"
	"github.com/Sternrassler/reqkit/pkg/transport"
)

// ErrPaginationNotConfigured is returned by ExecuteAll when WithPagination was not called.
var ErrPaginationNotConfigured = errors.New("pagination is not configured")

// APIError is the only error type returned by Execute and ExecuteAll.
// It annotates the underlying failure with the calling node.
type APIError struct {
	Node Node
	Err  error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the underlying response, or 0 when
// the failure did not come from an HTTP response.
func (e *APIError) StatusCode() int {
	var httpErr *request.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// ErrorClass represents a classification of execution failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses that outlived the retry budget.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassCanceled represents a cancelled or expired context.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassNetwork represents transport and decoding failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPrecondition represents configuration errors raised before any request.
	ErrorClassPrecondition ErrorClass = "precondition"
)

// preconditionErrors fail before the executor sends anything.
var preconditionErrors = []error{
	ErrPaginationNotConfigured,
	pagination.ErrNoConfig,
	pagination.ErrTokenPathsRequired,
	pagination.ErrBodyNotObject,
	pagination.ErrFullResponseRequired,
	transport.ErrUnknownCredential,
}

// Classify categorizes err for observability.
func Classify(err error) ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return ErrorClassPrecondition
		}
	}

	var httpErr *request.HTTPError
	if !errors.As(err, &httpErr) {
		return ErrorClassNetwork
	}

	switch {
	case httpErr.StatusCode == 429:
		return ErrorClassRateLimit
	case httpErr.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
