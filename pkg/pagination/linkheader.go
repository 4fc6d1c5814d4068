package pagination

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sternrassler/reqkit/pkg/dotpath"
	"github.com/Sternrassler/reqkit/pkg/request"
)

const (
	pageParam   = "page"
	relNextAttr = `rel="next"`
)

func (c LinkHeaderConfig) fetchAll(ctx context.Context, base request.Template, exec request.Executor) ([]any, error) {
	c = c.withDefaults()
	col := newCollector(StrategyLinkHeader)

	base.ReturnFullResponse = true
	for page := 1; ; page++ {
		if page > c.MaxPages {
			col.ceiling(c.MaxPages)
			break
		}

		tmpl := base.WithQuery(map[string]any{
			c.PerPageParam: c.PageSize,
			pageParam:      page,
		})

		resp, err := exec(ctx, tmpl)
		if err != nil {
			return nil, err
		}
		full, err := asFullResponse(resp)
		if err != nil {
			return nil, err
		}

		col.add(linkItems(full.Body, c.ItemsPath))

		if !hasNextLink(full.Headers) {
			break
		}
	}

	return col.done(), nil
}

func asFullResponse(resp any) (*request.FullResponse, error) {
	switch r := resp.(type) {
	case *request.FullResponse:
		if r != nil {
			return r, nil
		}
	case request.FullResponse:
		return &r, nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrFullResponseRequired, resp)
}

// linkItems prefers a bare array body and falls back to itemsPath.
func linkItems(body any, itemsPath string) []any {
	if items, ok := body.([]any); ok {
		return items
	}
	items, _ := dotpath.Slice(body, itemsPath)
	return items
}

// hasNextLink reports whether any Link header value advertises rel="next".
// Header names are matched case-insensitively, including non-canonical keys.
func hasNextLink(headers http.Header) bool {
	for name, values := range headers {
		if !strings.EqualFold(name, "link") {
			continue
		}
		for _, v := range values {
			if strings.Contains(v, relNextAttr) {
				return true
			}
		}
	}
	return false
}
