package extract

import "strings"

// StripCodeFence removes one leading ```json (or bare ```) fence and one
// trailing ``` fence from model output. Text without fences is returned
// trimmed but otherwise unchanged.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case len(s) >= 7 && strings.EqualFold(s[:7], "```json"):
		s = s[7:]
	case strings.HasPrefix(s, "```"):
		s = s[3:]
	}
	s = strings.TrimSpace(s)

	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
