package querybuilder

import (
	"regexp"
	"strings"

	"github.com/thetechidea/beepdatasources/internal/sqltext"
)

var (
	simpleSelect = regexp.MustCompile(`(?is)^\s*SELECT\s+\*\s+FROM\s+(` + identPart + `(?:\.` + identPart + `)*)(.*)$`)
	joinKeyword  = regexp.MustCompile(`(?i)\bJOIN\b`)
	// shapes whose row count differs from their table's filtered row count
	notSimple         = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|UNION|INTERSECT|EXCEPT|DISTINCT|LIMIT|OFFSET|FETCH|TOP)\b`)
	orderByKeyword    = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	whereEndKeyword   = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|ORDER\s+BY)\b`)
	pagingTailKeyword = regexp.MustCompile(`(?i)\b(LIMIT|OFFSET|FETCH)\b`)
	whereAtStart      = regexp.MustCompile(`(?i)^WHERE\b`)
	orderByAtStart    = regexp.MustCompile(`(?i)^ORDER\s+BY\b`)
)

// SimpleTable reports whether base is a plain SELECT * FROM <table>, optionally
// followed only by WHERE and ORDER BY, without any JOIN. It returns the table.
func SimpleTable(base string) (string, bool) {
	q := sqltext.TrimStatement(base)
	if joinKeyword.MatchString(q) {
		return "", false
	}
	m := simpleSelect.FindStringSubmatch(q)
	if m == nil {
		return "", false
	}
	rest := strings.TrimSpace(m[2])
	if rest == "" {
		return m[1], true
	}
	if !whereAtStart.MatchString(rest) && !orderByAtStart.MatchString(rest) {
		return "", false
	}
	if sqltext.HasTopLevel(rest, notSimple) {
		return "", false
	}
	return m[1], true
}

// ExtractWhere returns the WHERE clause of query, from the WHERE keyword up to
// the first following GROUP BY, HAVING or ORDER BY. It returns "" when query
// has no WHERE.
func ExtractWhere(query string) string {
	q := sqltext.TrimStatement(query)
	where := sqltext.FindTopLevel(q, whereKeyword, 0)
	if where == nil {
		return ""
	}
	end := len(q)
	if tail := sqltext.FindTopLevel(q, whereEndKeyword, where[1]); tail != nil {
		end = tail[0]
	}
	return strings.TrimSpace(q[where[0]:end])
}

// StripOrderBy removes a trailing top-level ORDER BY. An ORDER BY followed by
// a paging clause is kept because it decides which rows the page holds.
func StripOrderBy(query string) string {
	q := sqltext.TrimStatement(query)
	mask := sqltext.TopLevelMask(q)
	var last []int
	for _, loc := range orderByKeyword.FindAllStringIndex(q, -1) {
		if mask[loc[0]] {
			last = loc
		}
	}
	if last == nil || sqltext.HasTopLevel(q[last[1]:], pagingTailKeyword) {
		return q
	}
	return strings.TrimRight(q[:last[0]], " \t\r\n")
}

// CountQuery derives the query that counts the rows of filtered.
//
// When base is a simple single-table select the count is taken straight from
// the table with the WHERE clause of filtered. Otherwise filtered, minus any
// trailing ORDER BY, is wrapped in a subquery.
func CountQuery(base, filtered string) string {
	if table, ok := SimpleTable(base); ok {
		return strings.TrimSpace("SELECT COUNT(*) FROM " + table + " " + ExtractWhere(filtered))
	}
	return "SELECT COUNT(*) FROM ( " + StripOrderBy(filtered) + " ) q"
}
