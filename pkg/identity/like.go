package identity

import (
	"regexp"
	"strings"
)

// likeMatcher compiles a SQL LIKE pattern: % matches any run, _ any single rune.
// A pattern without wildcards matches as a substring.
func likeMatcher(pattern string) func(string) bool {
	if pattern == "" {
		return func(string) bool { return true }
	}

	if !strings.ContainsAny(pattern, "%_") {
		return func(value string) bool { return strings.Contains(value, pattern) }
	}

	var expr strings.Builder

	expr.WriteString("^")

	for _, r := range pattern {
		switch r {
		case '%':
			expr.WriteString(".*")
		case '_':
			expr.WriteString(".")
		default:
			expr.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	expr.WriteString("$")

	re := regexp.MustCompile("(?s)" + expr.String())

	return re.MatchString
}
