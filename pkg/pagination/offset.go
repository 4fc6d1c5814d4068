package pagination

import (
	"context"

	"github.com/Sternrassler/reqkit/pkg/dotpath"
	"github.com/Sternrassler/reqkit/pkg/request"
)

func (c OffsetConfig) fetchAll(ctx context.Context, base request.Template, exec request.Executor) ([]any, error) {
	c = c.withDefaults()
	col := newCollector(StrategyOffset)

	var token any
	for page := 0; ; page++ {
		if page >= c.MaxPages {
			col.ceiling(c.MaxPages)
			break
		}

		params := map[string]any{c.PageSizeParam: c.PageSize}
		if token != nil {
			params[c.OffsetQueryParam] = token
		}

		resp, err := exec(ctx, base.WithQuery(params))
		if err != nil {
			return nil, err
		}
		body := request.BodyOf(resp)

		// An empty page ends pagination before the token is read.
		items, _ := dotpath.Slice(body, c.ItemsPath)
		if len(items) == 0 {
			break
		}
		col.add(items)

		next, ok := dotpath.Present(body, c.OffsetResponsePath)
		if !ok {
			break
		}
		token = next
	}

	return col.done(), nil
}
