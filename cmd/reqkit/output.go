package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// render writes v in the requested format.
func render(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(v)
	case "table":
		return renderTable(w, v)
	default:
		return fmt.Errorf("unsupported output format %q (json, yaml, table)", format)
	}
}

// renderTable prints a list of objects with one column per key, a single
// object as property/value rows and anything else as one value.
func renderTable(w io.Writer, v any) error {
	table := tablewriter.NewWriter(w)

	switch val := v.(type) {
	case []any:
		columns := collectColumns(val)
		if len(columns) == 0 {
			table.Header("Value")
			for _, item := range val {
				_ = table.Append(cell(item))
			}
			break
		}
		header := make([]any, len(columns))
		for i, c := range columns {
			header[i] = c
		}
		table.Header(header...)
		for _, item := range val {
			obj, _ := item.(map[string]any)
			row := make([]string, len(columns))
			for i, c := range columns {
				row[i] = cell(obj[c])
			}
			_ = table.Append(row)
		}
	case map[string]any:
		table.Header("Property", "Value")
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = table.Append(k, cell(val[k]))
		}
	default:
		table.Header("Value")
		_ = table.Append(cell(val))
	}

	return table.Render()
}

// collectColumns returns the sorted union of keys of the object items.
func collectColumns(items []any) []string {
	seen := map[string]bool{}
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			for k := range obj {
				seen[k] = true
			}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// cell formats a value for a table cell; nested values are shown as JSON.
func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
