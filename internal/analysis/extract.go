// Package analysis turns free-text model output into validated structured data.
package analysis

import "strings"

const fence = "```"

// stripFences drops markdown code-fence lines and a fence wrapping the whole
// text. Fences inside the JSON body are left alone.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isFenceLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	if rest, ok := strings.CutPrefix(text, fence); ok {
		text = strings.TrimLeftFunc(rest, isLangTag)
	}
	text = strings.TrimSuffix(text, fence)
	return strings.TrimSpace(text)
}

// isFenceLine matches "```" or "```json" on a line of its own.
func isFenceLine(line string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), fence)
	return ok && strings.TrimLeftFunc(rest, isLangTag) == ""
}

func isLangTag(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// ExtractJSONObject returns the first balanced {...} object in text.
// Braces inside JSON strings are ignored. Returns false when the first object
// never closes.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
