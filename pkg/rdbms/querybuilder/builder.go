// Package querybuilder rewrites caller supplied SELECT statements: it merges
// filter criteria into the WHERE clause and derives COUNT queries.
//
// The rewriting is pattern based. Single-table selects and joins are the
// supported shapes; CTEs and set operations are not.
package querybuilder

import (
	"regexp"
	"strings"

	"github.com/thetechidea/beepdatasources/internal/sqltext"
	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
)

// JoinHint joins the clauses generated from several criteria.
type JoinHint string

const (
	And JoinHint = "AND"
	Or  JoinHint = "OR"
)

// ParseJoinHint returns Or for "or" in any case and And otherwise.
func ParseJoinHint(s string) JoinHint {
	if strings.EqualFold(strings.TrimSpace(s), string(Or)) {
		return Or
	}
	return And
}

// FilterBuilder is the signature of ApplyFilters, so callers can substitute their own.
type FilterBuilder func(base string, filters []filter.Filter, join JoinHint, prefix string, sanitize filter.Sanitizer) (string, error)

var (
	whereKeyword = regexp.MustCompile(`(?i)\bWHERE\b`)
	// clauses that follow WHERE in a SELECT
	tailKeyword = regexp.MustCompile(`(?i)\b(GROUP\s+BY|HAVING|ORDER\s+BY|LIMIT|OFFSET|FETCH)\b`)

	identPart  = "(?:[A-Za-z_][A-Za-z0-9_$]*|\"[^\"]+\"|\\[[^\\]]+\\]|`[^`]+`)"
	fieldIdent = regexp.MustCompile(`^` + identPart + `(?:\.` + identPart + `)*$`)
)

var operators = map[string]string{
	"=":        "=",
	"==":       "=",
	"!=":       "<>",
	"<>":       "<>",
	"<":        "<",
	"<=":       "<=",
	">":        ">",
	">=":       ">=",
	"like":     "LIKE",
	"not like": "NOT LIKE",
	"ilike":    "ILIKE",
	"between":  "BETWEEN",
}

// Clause renders the predicate of one bindable criterion, using the same
// parameter names filter.Bind binds.
func Clause(f filter.Filter, prefix string, sanitize filter.Sanitizer) (string, error) {
	field := strings.TrimSpace(f.FieldName)
	if !fieldIdent.MatchString(field) {
		return "", errors.Newf(errors.ErrorTypeValidation, "invalid filter field name %q", f.FieldName)
	}
	key := strings.Join(strings.Fields(strings.ToLower(f.Operator)), " ")
	op, ok := operators[key]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "unsupported filter operator %q", f.Operator).
			WithDetail("field", f.FieldName)
	}
	if f.IsRange() {
		return field + " BETWEEN " + prefix + f.ParamName(sanitize) + " AND " + prefix + f.UpperParamName(sanitize), nil
	}
	return field + " " + op + " " + prefix + f.ParamName(sanitize), nil
}

// ApplyFilters merges the bindable criteria of filters into base. A base
// without WHERE gets one before any GROUP BY, HAVING, ORDER BY or paging
// clause; an existing WHERE condition is parenthesized and ANDed with the
// new predicate. Criteria that are not bindable are skipped.
func ApplyFilters(base string, filters []filter.Filter, join JoinHint, prefix string, sanitize filter.Sanitizer) (string, error) {
	q := sqltext.TrimStatement(base)
	if q == "" {
		return "", errors.New(errors.ErrorTypeValidation, "base query is empty")
	}
	bindable := filter.Bindable(filters)
	if len(bindable) == 0 {
		return q, nil
	}
	if join != Or {
		join = And
	}

	clauses := make([]string, 0, len(bindable))
	for _, f := range bindable {
		c, err := Clause(f, prefix, sanitize)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, c)
	}
	predicate := strings.Join(clauses, " "+string(join)+" ")

	if where := sqltext.FindTopLevel(q, whereKeyword, 0); where != nil {
		end := len(q)
		if tail := sqltext.FindTopLevel(q, tailKeyword, where[1]); tail != nil {
			end = tail[0]
		}
		existing := strings.TrimSpace(q[where[1]:end])
		if join == Or && len(clauses) > 1 {
			predicate = "(" + predicate + ")"
		}
		merged := q[:where[0]] + "WHERE (" + existing + ") AND " + predicate
		if end < len(q) {
			merged += " " + q[end:]
		}
		return merged, nil
	}

	if tail := sqltext.FindTopLevel(q, tailKeyword, 0); tail != nil {
		return strings.TrimRight(q[:tail[0]], " \t\r\n") + " WHERE " + predicate + " " + q[tail[0]:], nil
	}
	return q + " WHERE " + predicate, nil
}
