package llm

import (
	"errors"
	"fmt"
)

// ErrUnparsableResponse is returned when no well-formed JSON object can be
// located in the generator's response text.
var ErrUnparsableResponse = errors.New("no parsable JSON object in generator response")

// ExtractJSONObject returns the first balanced JSON object embedded in text.
// Generator backends routinely wrap their JSON in explanatory prose or
// markdown fences, so the whole response is never required to be pure JSON.
// Brace counting is string-aware: braces inside JSON strings do not count.
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		}
	}
	if start != -1 {
		return "", fmt.Errorf("%w: unbalanced object starting at offset %d", ErrUnparsableResponse, start)
	}
	return "", ErrUnparsableResponse
}
