package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*\r?$")

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
// Code snippets round-trip through reports, so HTML escaping would mangle them.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnescapeUnicodeString converts JSON unicode escapes like ">" into actual characters.
func UnescapeUnicodeString(s string) (string, error) {
	if !strings.Contains(s, `\u`) {
		return s, nil
	}
	esc := strings.ReplaceAll(s, `\`, `\\`)
	esc = strings.ReplaceAll(esc, `"`, `\"`)
	esc = strings.ReplaceAll(esc, `\\u`, `\u`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

// NormalizeJSONUnicode parses raw and recursively unescapes double-escaped
// unicode sequences inside string values. A payload that is itself a JSON
// string holding JSON is unwrapped up to two levels.
func NormalizeJSONUnicode(raw []byte) ([]byte, error) {
	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, err
	}
	for depth := 0; depth < 2; depth++ {
		s, ok := val.(string)
		if !ok {
			break
		}
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, errors.New("jsonutil: payload is a string, not an object")
		}
		val = inner
	}
	return MarshalNoEscape(deepUnescape(val))
}

// UnmarshalFlex unmarshals raw into v, retrying once after unicode
// normalization when the direct decode fails.
func UnmarshalFlex(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	norm, nerr := NormalizeJSONUnicode(raw)
	if nerr != nil {
		return err
	}
	return json.Unmarshal(norm, v)
}

// StripFences removes markdown code-fence lines (``` and ```json) from text.
func StripFences(text string) string {
	return strings.TrimSpace(reFence.ReplaceAllString(text, ""))
}

// ObjectCandidates returns substrings of text that may hold a JSON object, in
// the order they should be tried: the greedy slice from the first '{' to the
// last '}', then every balanced top-level {...} span. String literals are
// honoured while balancing so braces inside code snippets do not count.
func ObjectCandidates(text string) []string {
	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first < 0 || last <= first {
		return nil
	}
	out := []string{text[first : last+1]}
	seen := map[string]bool{out[0]: true}

	depth, start := 0, -1
	inString, escaped := false, false
	for i := first; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				span := text[start : i+1]
				if !seen[span] {
					seen[span] = true
					out = append(out, span)
				}
				start = -1
			}
		}
	}
	return out
}

func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := UnescapeUnicodeString(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}
