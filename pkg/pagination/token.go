package pagination

import (
	"context"
	"maps"

	"github.com/Sternrassler/reqkit/pkg/dotpath"
	"github.com/Sternrassler/reqkit/pkg/request"
)

const (
	variablesKey = "variables"
	firstVar     = "first"
	afterVar     = "after"
)

func (c TokenConfig) fetchAll(ctx context.Context, base request.Template, exec request.Executor) ([]any, error) {
	if c.TokenPath == "" || c.HasMorePath == "" {
		return nil, ErrTokenPathsRequired
	}
	c = c.withDefaults()

	var baseBody map[string]any
	switch b := base.Body.(type) {
	case nil:
		baseBody = map[string]any{}
	case map[string]any:
		baseBody = b
	default:
		return nil, ErrBodyNotObject
	}

	col := newCollector(StrategyToken)

	var after any
	for page := 0; ; page++ {
		if page >= c.MaxPages {
			col.ceiling(c.MaxPages)
			break
		}

		tmpl := base.Clone()
		tmpl.Body = withPageVariables(baseBody, c.PageSize, after)

		resp, err := exec(ctx, tmpl)
		if err != nil {
			return nil, err
		}
		body := request.BodyOf(resp)

		items, _ := dotpath.Slice(body, c.ItemsPath)
		col.add(items)

		after, _ = dotpath.Get(body, c.TokenPath)
		hasMore, _ := dotpath.Get(body, c.HasMorePath)
		if !dotpath.Truthy(hasMore) {
			break
		}
	}

	return col.done(), nil
}

// withPageVariables copies body and merges first/after into its variables.
// after is always present, nil on the first page.
func withPageVariables(body map[string]any, first int, after any) map[string]any {
	out := maps.Clone(body)
	if out == nil {
		out = make(map[string]any, 1)
	}
	vars := map[string]any{}
	if existing, ok := body[variablesKey].(map[string]any); ok {
		vars = maps.Clone(existing)
	}
	vars[firstVar] = first
	vars[afterVar] = after
	out[variablesKey] = vars
	return out
}
