package textutil

import "strings"

// Blank reports whether s holds only whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Snippet collapses runs of whitespace into single spaces and truncates the
// result to limit runes, appending "..." when truncated. Empty input renders
// as "<empty>".
func Snippet(content string, limit int) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if limit <= 0 {
		return clean
	}
	runes := []rune(clean)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}

// Head returns the first limit runes of content with its layout intact,
// appending "..." when anything was cut.
func Head(content string, limit int) string {
	runes := []rune(content)
	if limit <= 0 || len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

// Plural returns singular when n is one, plural otherwise.
func Plural(n int, singular, plural string) string {
	return Ternary(n == 1, singular, plural)
}

// Ternary picks a when cond holds and b otherwise. Table cells and report
// lines use it to keep one-line formatting readable.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
