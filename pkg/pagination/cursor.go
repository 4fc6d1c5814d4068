package pagination

import (
	"context"

	"github.com/Sternrassler/reqkit/pkg/dotpath"
	"github.com/Sternrassler/reqkit/pkg/request"
)

func (c CursorConfig) fetchAll(ctx context.Context, base request.Template, exec request.Executor) ([]any, error) {
	c = c.withDefaults()
	col := newCollector(StrategyCursor)

	var cursor any
	for page := 0; ; page++ {
		if page >= c.MaxPages {
			col.ceiling(c.MaxPages)
			break
		}

		params := map[string]any{c.LimitParam: c.PageSize}
		if cursor != nil {
			params[c.CursorQueryParam] = cursor
		}

		resp, err := exec(ctx, base.WithQuery(params))
		if err != nil {
			return nil, err
		}
		body := request.BodyOf(resp)

		items, _ := dotpath.Slice(body, c.ItemsPath)
		col.add(items)

		next, _ := dotpath.Get(body, c.CursorPath)
		if !dotpath.Truthy(next) {
			break
		}
		cursor = next
	}

	return col.done(), nil
}
