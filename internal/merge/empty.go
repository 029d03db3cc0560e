package merge

import (
	"reflect"
	"strings"
)

// isEmpty reports whether a stored value counts as empty for gating purposes:
// nil, a blank or whitespace-only string, an empty slice, or a map with zero
// keys. Maps are checked one level deep only; a map whose every value is
// itself empty also counts as empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		if len(t) == 0 {
			return true
		}
		for _, inner := range t {
			if !shallowEmpty(inner) {
				return false
			}
		}
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// shallowEmpty is the one-level check used for map members: nil or blank
// string only, no further recursion.
func shallowEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
