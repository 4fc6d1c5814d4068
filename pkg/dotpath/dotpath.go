// Package dotpath reads values out of decoded JSON documents using dot
// separated paths such as "data.issues.pageInfo.endCursor".
//
// Lookups never fail: a missing segment, a type mismatch or an out of range
// index all report the value as absent.
package dotpath

import (
	"strconv"
	"strings"
)

// Get resolves path inside value. An empty path returns value itself.
// Numeric segments index into arrays ("items.0.id").
func Get(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}

	current := value
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// Slice resolves path and returns the value when it is an array.
func Slice(value any, path string) ([]any, bool) {
	v, ok := Get(value, path)
	if !ok {
		return nil, false
	}
	items, ok := v.([]any)
	return items, ok
}

// Present reports whether path resolves to a usable continuation value:
// found, not null and not the empty string.
func Present(value any, path string) (any, bool) {
	v, ok := Get(value, path)
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

// Truthy applies JSON truthiness: null, false, 0 and "" are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
