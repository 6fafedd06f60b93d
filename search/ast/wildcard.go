package ast

import (
	"regexp"
	"strings"
)

// Translate turns a wildcard pattern into an anchored regular expression.
// '*' matches any run of characters, a backslash makes the next character
// literal and every other character is matched literally.
func Translate(pattern string) string {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes):
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case c == '*':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$")
	return b.String()
}
