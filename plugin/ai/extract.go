package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject finds the first top-level {...} substring in text and
// unmarshals it into v. Models often wrap the object in prose or a code
// fence; everything around the object is ignored.
func ExtractJSONObject(text string, v any) error {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return json.Unmarshal([]byte(text[start:i+1]), v)
			}
		}
	}
	return fmt.Errorf("unterminated JSON object in response")
}
