package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/reqkit/pkg/client"
	"github.com/Sternrassler/reqkit/pkg/pagination"
	"github.com/Sternrassler/reqkit/pkg/ratelimit"
	"github.com/Sternrassler/reqkit/pkg/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type fetchOptions struct {
	baseURL        string
	method         string
	headers        []string
	query          []string
	body           string
	credential     string
	paginationFile string
	spec           pagination.Spec
	strategy       string
	retry          bool
	maxRetries     int
	rateLimitFile  string
	output         string
}

func newFetchCommand() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a resource, optionally walking every page",
		Long: `Fetch a resource and print it.

With --strategy (or --pagination-file) every page is fetched and the
collected items are printed instead of the first response.`,
		Example: `  reqkit fetch https://api.github.com/orgs/golang/repos --strategy link-header
  reqkit fetch https://slack.com/api/users.list --strategy cursor --items-path members --credential slack
  reqkit fetch https://api.linear.app/graphql -X POST --body @query.json \
      --strategy token --items-path data.issues.nodes \
      --token-path data.issues.pageInfo.endCursor --has-more-path data.issues.pageInfo.hasNextPage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.output = viper.GetString("output")
			return runFetch(cmd.Context(), cmd, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "", "base URL prepended to a relative URL argument")
	f.StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	f.StringArrayVarP(&opts.query, "query", "q", nil, `query parameter "key=value" (repeatable)`)
	f.StringVarP(&opts.body, "body", "d", "", "JSON request body, or @file")
	f.StringVar(&opts.credential, "credential", "", "credential type from the config file (or 'default' for --token)")
	f.String("token", "", "bearer token registered as the 'default' credential")

	f.StringVar(&opts.strategy, "strategy", "", "pagination strategy (offset, cursor, link-header, token)")
	f.StringVar(&opts.paginationFile, "pagination-file", "", "yaml/json file with the pagination settings")
	f.StringVar(&opts.spec.ItemsPath, "items-path", "", `dot path to the item list ("" = body)`)
	f.IntVar(&opts.spec.PageSize, "page-size", 0, "items per page (default 100, 50 for token)")
	f.IntVar(&opts.spec.MaxPages, "max-pages", 0, "page ceiling (default 1000)")
	f.StringVar(&opts.spec.OffsetResponsePath, "offset-response-path", "", `offset: token location (default "offset")`)
	f.StringVar(&opts.spec.OffsetQueryParam, "offset-query-param", "", `offset: token parameter (default "offset")`)
	f.StringVar(&opts.spec.PageSizeParam, "page-size-param", "", `offset: page size parameter (default "pageSize")`)
	f.StringVar(&opts.spec.CursorPath, "cursor-path", "", `cursor: cursor location (default "response_metadata.next_cursor")`)
	f.StringVar(&opts.spec.CursorQueryParam, "cursor-query-param", "", `cursor: cursor parameter (default "cursor")`)
	f.StringVar(&opts.spec.LimitParam, "limit-param", "", `cursor: page size parameter (default "limit")`)
	f.StringVar(&opts.spec.PerPageParam, "per-page-param", "", `link-header: page size parameter (default "per_page")`)
	f.StringVar(&opts.spec.TokenPath, "token-path", "", "token: end cursor location")
	f.StringVar(&opts.spec.HasMorePath, "has-more-path", "", "token: has-more flag location")

	f.BoolVar(&opts.retry, "retry", false, "retry requests rejected with 429")
	f.IntVar(&opts.maxRetries, "max-retries", ratelimit.DefaultMaxRetries, "retries after the first attempt")
	f.StringVar(&opts.rateLimitFile, "rate-limit-file", "", "yaml/json file with the retry settings (implies --retry)")
	f.StringP("output", "o", "json", "output format (json, yaml, table)")

	_ = viper.BindPFlag("output", f.Lookup("output"))
	_ = viper.BindPFlag("token", f.Lookup("token"))

	return cmd
}

func runFetch(ctx context.Context, cmd *cobra.Command, opts *fetchOptions, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tcfg, err := transportConfig(ctx)
	if err != nil {
		return err
	}
	executor, err := transport.New(tcfg)
	if err != nil {
		return err
	}

	c := client.New(client.Node{ID: "cli", Name: "reqkit fetch", Type: "cli"}, executor)
	b, err := opts.builder(c, target)
	if err != nil {
		return err
	}

	var result any
	if opts.paginated() {
		cfg, err := opts.paginationConfig()
		if err != nil {
			return err
		}
		result, err = b.WithPagination(cfg).ExecuteAll(ctx)
		if err != nil {
			return err
		}
	} else {
		result, err = b.Execute(ctx)
		if err != nil {
			return err
		}
	}

	return render(cmd.OutOrStdout(), opts.output, result)
}

func (o *fetchOptions) paginated() bool {
	return o.strategy != "" || o.paginationFile != ""
}

// builder applies the request flags to a new Builder.
func (o *fetchOptions) builder(c *client.Client, target string) (*client.Builder, error) {
	b := c.NewRequest().BaseURL(o.baseURL).Endpoint(target).Method(strings.ToUpper(o.method))

	headers, err := parseHeaders(o.headers)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		b.Headers(headers)
	}

	query, err := parseQuery(o.query)
	if err != nil {
		return nil, err
	}
	b.Query(query)

	if o.body != "" {
		body, err := parseBody(o.body)
		if err != nil {
			return nil, err
		}
		b.Body(body)
	}

	if o.credential != "" {
		b.WithAuthentication(o.credential)
	} else if viper.GetString("token") != "" {
		b.WithAuthentication(defaultCredential)
	}

	if o.rateLimitFile != "" {
		data, err := os.ReadFile(o.rateLimitFile)
		if err != nil {
			return nil, fmt.Errorf("read rate limit file: %w", err)
		}
		cfg, err := ratelimit.ParseConfig(data)
		if err != nil {
			return nil, err
		}
		b.WithRateLimiting(cfg)
	} else if o.retry {
		cfg := ratelimit.Retries(o.maxRetries)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		b.WithRateLimiting(cfg)
	}

	return b, nil
}

// paginationConfig resolves the pagination file, overridden by flags.
func (o *fetchOptions) paginationConfig() (pagination.Config, error) {
	spec := pagination.Spec{}
	if o.paginationFile != "" {
		data, err := os.ReadFile(o.paginationFile)
		if err != nil {
			return nil, fmt.Errorf("read pagination file: %w", err)
		}
		spec, err = pagination.DecodeSpec(data)
		if err != nil {
			return nil, err
		}
	}

	mergeSpec(&spec, o.spec)
	if o.strategy != "" {
		spec.Strategy = pagination.Strategy(o.strategy)
	}
	return spec.Config()
}

// mergeSpec copies every set field of override into dst.
func mergeSpec(dst *pagination.Spec, override pagination.Spec) {
	setString := func(d *string, v string) {
		if v != "" {
			*d = v
		}
	}
	setString(&dst.ItemsPath, override.ItemsPath)
	setString(&dst.OffsetResponsePath, override.OffsetResponsePath)
	setString(&dst.OffsetQueryParam, override.OffsetQueryParam)
	setString(&dst.PageSizeParam, override.PageSizeParam)
	setString(&dst.CursorPath, override.CursorPath)
	setString(&dst.CursorQueryParam, override.CursorQueryParam)
	setString(&dst.LimitParam, override.LimitParam)
	setString(&dst.PerPageParam, override.PerPageParam)
	setString(&dst.TokenPath, override.TokenPath)
	setString(&dst.HasMorePath, override.HasMorePath)
	if override.PageSize > 0 {
		dst.PageSize = override.PageSize
	}
	if override.MaxPages > 0 {
		dst.MaxPages = override.MaxPages
	}
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", v)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func parseQuery(values []string) (map[string]any, error) {
	query := make(map[string]any, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want key=value", v)
		}
		if existing, dup := query[key]; dup {
			switch e := existing.(type) {
			case []any:
				query[key] = append(e, value)
			default:
				query[key] = []any{e, value}
			}
			continue
		}
		query[key] = value
	}
	return query, nil
}

// parseBody decodes inline JSON or the JSON file named after '@'.
func parseBody(raw string) (any, error) {
	data := []byte(raw)
	if name, ok := strings.CutPrefix(raw, "@"); ok {
		var err error
		data, err = os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("body must be JSON: %w", err)
	}
	return body, nil
}
