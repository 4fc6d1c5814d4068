// Package pagination walks multi-page API results and returns every item.
//
// Four protocols are supported, each configured by its own Config variant:
//
//   - OffsetConfig: an opaque offset token read from the body is sent back as a query parameter
//   - CursorConfig: a cursor read from the body (Slack style "response_metadata.next_cursor")
//   - LinkHeaderConfig: numbered pages continued while the Link header has rel="next" (GitHub style)
//   - TokenConfig: GraphQL "first"/"after" variables with a has-more flag (Relay pageInfo style)
//
// Example usage:
//
//	cfg := pagination.CursorConfig{
//		Options: pagination.Options{ItemsPath: "members", PageSize: 200},
//	}
//	items, err := pagination.FetchAll(ctx, tmpl, cfg, executor)
//
// Pages are fetched strictly one after another because each request depends
// on the previous response. Every strategy stops after MaxPages requests even
// when the server still reports more data.
//
// Configurations can also be read from the flat YAML/JSON form with ParseSpec.
package pagination
