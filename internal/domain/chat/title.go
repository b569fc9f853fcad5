package chat

import "strings"

// CleanTitle normalizes a model-produced title: surrounding whitespace and
// quote pairs are stripped, and the result is capped at titleMaxRunes. Models
// routinely wrap titles in quotes despite instructions not to.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	// Collapse a multi-line reply to its first line.
	if i := strings.IndexAny(title, "\r\n"); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	for {
		trimmed := strings.TrimSpace(trimQuotePair(title))
		if trimmed == title {
			break
		}
		title = trimmed
	}
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}
	return title
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"}, // curly double quotes
	{"‘", "’"}, // curly single quotes
}

func trimQuotePair(s string) string {
	for _, p := range quotePairs {
		if len(s) > len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return s[len(p[0]) : len(s)-len(p[1])]
		}
	}
	return s
}
