package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject recovers a single JSON object from model output that may
// be wrapped in markdown fences or surrounded by prose. It returns the raw
// object bytes, not a decoded value, so callers can validate against a schema
// before binding.
func ExtractJSONObject(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model response")
	}

	// Fast path: the whole response is the object.
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	// Fenced block, with or without a language tag.
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if firstLine == "" || isFenceTag(firstLine) {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		if obj, err := firstBalancedObject(rest); err == nil {
			return obj, nil
		}
	}

	// Last resort: first balanced top-level object anywhere in the text.
	return firstBalancedObject(trimmed)
}

func isFenceTag(s string) bool {
	switch strings.ToLower(s) {
	case "json", "json5", "javascript", "js":
		return true
	}
	return false
}

// firstBalancedObject scans for the first '{' and returns the shortest
// balanced object starting there, honouring strings and escapes.
func firstBalancedObject(s string) (json.RawMessage, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, fmt.Errorf("model response contains an unparseable object")
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in model response")
}
