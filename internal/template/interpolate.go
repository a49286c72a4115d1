// Package template substitutes "${...}" placeholders in strings and
// recursively in JSON structures (spec.md §4.4). Only "${event.data.<field>}"
// spans resolve to a value; every other "${...}" span is emptied out.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InterpolateString scans s for every "${...}" span. A span prefixed with
// "event.data." resolves to the string/number/bool rendering of that field
// from eventData, or empty if the field is missing, null, or a nested
// object/array. Any other span content (unrecognized placeholders) also
// resolves to empty — the original implementation this was ported from
// has no concept of a literal pass-through for unknown "${...}" spans. An
// unterminated "${" with no matching "}" is left as literal text.
func InterpolateString(s string, eventData map[string]any) string {
	var out strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		tail := rest[start+2:]
		end := strings.Index(tail, "}")
		if end == -1 {
			out.WriteString(rest[start:])
			break
		}

		out.WriteString(resolvePlaceholder(tail[:end], eventData))
		rest = tail[end+1:]
	}
	return out.String()
}

func resolvePlaceholder(name string, eventData map[string]any) string {
	field, ok := strings.CutPrefix(name, "event.data.")
	if !ok {
		return ""
	}
	val, ok := eventData[field]
	if !ok {
		return ""
	}
	return renderScalar(val)
}

func renderScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return fmt.Sprintf("%t", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// InterpolateValue recursively interpolates every string value within a
// JSON value (object, array, or scalar), leaving non-string scalars
// unchanged.
func InterpolateValue(v any, eventData map[string]any) any {
	switch val := v.(type) {
	case string:
		return InterpolateString(val, eventData)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = InterpolateValue(vv, eventData)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = InterpolateValue(vv, eventData)
		}
		return out
	default:
		return val
	}
}

// InterpolateJSON interpolates a raw JSON document and returns the result
// re-marshaled. Used for body templates; header maps go through
// InterpolateHeaders.
func InterpolateJSON(raw json.RawMessage, eventData map[string]any) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid json for interpolation: %w", err)
	}
	result := InterpolateValue(v, eventData)
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal interpolated json: %w", err)
	}
	return out, nil
}

// InterpolateHeaders interpolates every value in a header map.
func InterpolateHeaders(headers map[string]string, eventData map[string]any) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = InterpolateString(v, eventData)
	}
	return out
}

// DataAsMap decodes an event's JSON data object into a plain map for
// placeholder lookups.
func DataAsMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
