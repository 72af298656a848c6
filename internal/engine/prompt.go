package engine

import "strings"

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag. Models frequently wrap JSON and SQL in one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		// Drop a language tag like "json" or "sql".
		if firstLine != "" && !strings.ContainsAny(firstLine, " {([") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
