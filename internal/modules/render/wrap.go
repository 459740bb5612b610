package render

import "strings"

// WrapDocument wraps an HTML fragment in a minimal document shell. Complete
// documents pass through untouched, so wrapping is idempotent.
func WrapDocument(html string) string {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(strings.ToLower(trimmed), "<html") {
		return trimmed
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n</head>\n<body>\n")
	b.WriteString(trimmed)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
