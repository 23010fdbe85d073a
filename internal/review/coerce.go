package review

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reFirstInt = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Model output is decoded into map[string]any, so every field arrives as one
// of string, float64, bool, []any, map[string]any or nil. These helpers pull
// typed values out of that soup.

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// asNumber accepts numbers, numeric strings and strings containing a number
// ("line 12", "85/100", "12-14"); the first number wins.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		m := reFirstInt.FindString(x)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return roundInt(f, math.MinInt32, math.MaxInt32), true
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case float64:
		return x != 0
	default:
		return false
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// first returns the first present key's value, so camelCase and snake_case
// spellings of a field are both accepted.
func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func clampFloat(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// roundInt rounds f into [lo, hi]. Clamping happens before the conversion
// because converting an out-of-range float to int is implementation defined.
func roundInt(f float64, lo, hi int) int {
	return int(math.Round(clampFloat(f, float64(lo), float64(hi))))
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
