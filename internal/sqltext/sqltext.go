// Package sqltext has the small lexical helpers the query rewriters share.
// It is not a SQL parser: it only tells which byte positions sit outside
// parentheses, quoted strings, quoted identifiers and comments.
package sqltext

import (
	"regexp"
	"strings"
)

// TopLevelMask returns, for each byte of query, whether it is at parenthesis
// depth zero and outside quotes and comments.
func TopLevelMask(query string) []bool {
	mask := make([]bool, len(query))
	depth := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closing(query, i, c)
			i = end
			continue
		case c == '[':
			i = closing(query, i, ']')
			continue
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end == -1 {
				return mask
			}
			i += end + 3
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		mask[i] = depth == 0
	}
	return mask
}

// closing returns the index of the quote that closes the one at start.
// Doubled quotes inside the literal are treated as escapes.
func closing(query string, start int, quote byte) int {
	for i := start + 1; i < len(query); i++ {
		if query[i] != quote {
			continue
		}
		if quote != ']' && i+1 < len(query) && query[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(query) - 1
}

// FindTopLevel returns the [start, end) of the first match of re that begins
// at or after from on a top-level position, or nil.
func FindTopLevel(query string, re *regexp.Regexp, from int) []int {
	mask := TopLevelMask(query)
	for _, loc := range re.FindAllStringIndex(query, -1) {
		if loc[0] >= from && mask[loc[0]] {
			return loc
		}
	}
	return nil
}

// HasTopLevel reports whether re matches on a top-level position.
func HasTopLevel(query string, re *regexp.Regexp) bool {
	return FindTopLevel(query, re, 0) != nil
}

// TrimStatement removes surrounding whitespace and trailing semicolons.
func TrimStatement(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}
