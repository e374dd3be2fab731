// Package lookup walks decoded JSON values by path.
package lookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Get returns the value at path inside v. String segments index objects
// (map[string]any) and int segments index arrays ([]any). The second result
// is false as soon as a segment is missing or the container has the wrong
// kind. A present null, 0, false or "" is reported as found.
func Get(v any, path ...any) (any, bool) {
	cur := v
	for _, seg := range path {
		switch key := seg.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := obj[key]
			if !ok {
				return nil, false
			}
			cur = next
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Path is Get with a dotted path. All-digit segments index arrays, so
// "_embedded.author.0.name" reads the first author's name.
func Path(v any, dotted string) (any, bool) {
	if dotted == "" {
		return v, true
	}
	raw := strings.Split(dotted, ".")
	segs := make([]any, 0, len(raw))
	for _, s := range raw {
		if i, err := strconv.Atoi(s); err == nil && i >= 0 {
			segs = append(segs, i)
			continue
		}
		segs = append(segs, s)
	}
	return Get(v, segs...)
}

// String returns the string at path. Non-string values are not converted,
// except json.Number which keeps its literal text.
func String(v any, path ...any) (string, bool) {
	val, ok := Get(v, path...)
	if !ok {
		return "", false
	}
	switch s := val.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

// Int returns the integer at path. json.Number, float64 and int are accepted.
func Int(v any, path ...any) (int, bool) {
	val, ok := Get(v, path...)
	if !ok {
		return 0, false
	}
	switch n := val.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	default:
		return 0, false
	}
}

// Slice returns the array at path.
func Slice(v any, path ...any) ([]any, bool) {
	val, ok := Get(v, path...)
	if !ok {
		return nil, false
	}
	arr, ok := val.([]any)
	return arr, ok
}
