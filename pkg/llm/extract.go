package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no decodable JSON object can be found in the
// assistant response.
var ErrNoJSON = errors.New("llm: no JSON object in response")

// ExtractJSON decodes a JSON object out of free-form assistant text into
// target. The whole trimmed content is tried first; on failure the first
// balanced {...} substring that decodes successfully wins. Models often
// wrap their answer in markdown fences or prose, so both are stripped.
func ExtractJSON(content string, target interface{}) error {
	trimmed := strings.TrimSpace(stripFences(content))
	if trimmed == "" {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	for start := strings.IndexByte(trimmed, '{'); start >= 0; {
		end := matchBrace(trimmed, start)
		if end < 0 {
			break
		}
		candidate := trimmed[start : end+1]
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
		next := strings.IndexByte(trimmed[start+1:], '{')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return fmt.Errorf("%w: %.80s", ErrNoJSON, trimmed)
}

// matchBrace returns the index of the brace closing the object opened at
// start, respecting strings and escapes, or -1 when unbalanced.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
