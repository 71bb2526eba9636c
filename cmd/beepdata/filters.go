package main

import (
	"regexp"
	"strings"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
)

var (
	wordOperator   = regexp.MustCompile(`(?i)^\s*(\S+)\s+(not\s+like|like|ilike|between)\s+(.*?)\s*$`)
	symbolOperator = regexp.MustCompile(`^\s*([^\s=!<>]+)\s*(==|!=|<>|<=|>=|=|<|>)\s*(.*?)\s*$`)
)

// ParseFilter parses "field op value". BETWEEN takes "low,high".
//
//	status = shipped
//	total>=100
//	note not like %gift%
//	created_at between 2024-01-01,2024-06-30
func ParseFilter(s string) (filter.Filter, error) {
	m := wordOperator.FindStringSubmatch(s)
	if m == nil {
		m = symbolOperator.FindStringSubmatch(s)
	}
	if m == nil {
		return filter.Filter{}, errors.Newf(errors.ErrorTypeValidation, "cannot parse filter %q, expected \"field op value\"", s)
	}

	f := filter.Filter{
		FieldName:   m[1],
		Operator:    strings.ToLower(strings.Join(strings.Fields(m[2]), " ")),
		FilterValue: m[3],
	}
	if f.IsRange() {
		low, high, ok := strings.Cut(m[3], ",")
		if !ok || strings.TrimSpace(high) == "" {
			return filter.Filter{}, errors.Newf(errors.ErrorTypeValidation, "between filter %q needs two comma separated values", s)
		}
		f.FilterValue = strings.TrimSpace(low)
		f.FilterValue1 = strings.TrimSpace(high)
	}
	if f.FilterValue == "" {
		return filter.Filter{}, errors.Newf(errors.ErrorTypeValidation, "filter %q has no value", s)
	}
	return f, nil
}

// ParseFilters parses every expression in order.
func ParseFilters(exprs []string) ([]filter.Filter, error) {
	filters := make([]filter.Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}
