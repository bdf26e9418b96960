package booking

import (
	"encoding/json"
	"strconv"
	"strings"
)

// parseFloat converts loosely typed input to a float. Empty, null and
// non-numeric input all yield nil.
func parseFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// patchFloat applies the three-way rule for key: absent leaves the column
// alone, anything else is coerced with parseFloat.
func patchFloat(fields map[string]any, patch map[string]any, key, column string) {
	if v, ok := patch[key]; ok {
		fields[column] = parseFloat(v)
	}
}

// patchString sets column when key is present. null clears nullable columns
// and is ignored for required ones.
func patchString(fields map[string]any, patch map[string]any, key, column string, nullable bool) {
	v, ok := patch[key]
	if !ok {
		return
	}
	switch x := v.(type) {
	case nil:
		if nullable {
			fields[column] = nil
		}
	case string:
		fields[column] = x
	default:
		if b, err := json.Marshal(x); err == nil {
			fields[column] = string(b)
		}
	}
}

func isTrue(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(strings.TrimSpace(x), "true")
	}
	return false
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
