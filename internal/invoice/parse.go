package invoice

import (
	"encoding/json"
	"strings"
)

// ParseResponse finds the first well-formed JSON object in a model reply and
// decodes it. Braces in surrounding prose are skipped. When no balanced span
// decodes, the span from the first '{' to the last '}' is tried as a last
// resort.
func ParseResponse(text string) (map[string]any, error) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchingBrace(text, start); end > start {
			if obj, ok := decodeObject(text[start : end+1]); ok {
				return obj, nil
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	first, last := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if first >= 0 && last > first {
		if obj, ok := decodeObject(text[first : last+1]); ok {
			return obj, nil
		}
	}

	return nil, ErrNoJSONObject
}

// matchingBrace returns the index of the '}' closing the '{' at start, or -1.
// Braces inside JSON strings are ignored.
func matchingBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false

	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
