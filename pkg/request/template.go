// Package request defines the types exchanged with the network executor:
// the request template handed to it, the full-response envelope it may
// return and the error it reports for unsuccessful HTTP statuses.
package request

import (
	"context"
	"maps"
	"net/http"
)

// Template describes a single API call before it is sent.
// Every paginated page works on its own Clone of the base template.
type Template struct {
	// BaseURL is prepended to URL by the executor when set.
	BaseURL string

	// URL is the endpoint path or absolute URL.
	URL string

	// Method is the HTTP method (GET, POST, ...).
	Method string

	// Body is JSON-encoded by the executor. Nil means no body.
	Body any

	// Query holds query string parameters. Nil means no query string.
	Query map[string]any

	// Headers holds request headers.
	Headers map[string]string

	// ReturnFullResponse asks the executor for a *FullResponse instead of the
	// bare decoded body.
	ReturnFullResponse bool
}

// Clone returns a copy of t whose Query and Headers maps can be mutated
// without affecting t. A map body is copied one level deep.
func (t Template) Clone() Template {
	out := t
	if t.Query != nil {
		out.Query = maps.Clone(t.Query)
	}
	if t.Headers != nil {
		out.Headers = maps.Clone(t.Headers)
	}
	if body, ok := t.Body.(map[string]any); ok {
		out.Body = maps.Clone(body)
	}
	return out
}

// WithQuery returns a clone of t with params merged over its query map.
func (t Template) WithQuery(params map[string]any) Template {
	out := t.Clone()
	if out.Query == nil {
		out.Query = make(map[string]any, len(params))
	}
	for k, v := range params {
		out.Query[k] = v
	}
	return out
}

// FullResponse is returned by executors when Template.ReturnFullResponse is set.
type FullResponse struct {
	Body       any
	Headers    http.Header
	StatusCode int
}

// Executor performs one network call for a template.
// It returns the decoded body, or a *FullResponse when the template asks for it.
type Executor func(ctx context.Context, t Template) (any, error)

// BodyOf unwraps a *FullResponse to its body; other values are returned as is.
func BodyOf(resp any) any {
	switch r := resp.(type) {
	case *FullResponse:
		if r == nil {
			return nil
		}
		return r.Body
	case FullResponse:
		return r.Body
	default:
		return resp
	}
}
