// Package filter holds filter criteria and binds them as command parameters.
package filter

import (
	"regexp"
	"strings"
)

// RangeOperator is the operator that binds two parameters.
const RangeOperator = "between"

// ParamNamePrefix starts every generated parameter name.
const ParamNamePrefix = "p_"

// Filter is one field/operator/value condition.
type Filter struct {
	FieldName    string `json:"field_name" yaml:"field_name"`
	Operator     string `json:"operator" yaml:"operator"`
	FilterValue  string `json:"filter_value" yaml:"filter_value"`
	FilterValue1 string `json:"filter_value1,omitempty" yaml:"filter_value1,omitempty"`
	// ValueType is a semantic type name such as System.DateTime
	ValueType string `json:"value_type,omitempty" yaml:"value_type,omitempty"`
}

// Sanitizer turns a field name into a string legal inside a parameter name.
type Sanitizer func(string) string

var illegalParamChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// DefaultSanitizer drops every character outside [A-Za-z0-9_].
func DefaultSanitizer(name string) string {
	return illegalParamChars.ReplaceAllString(name, "")
}

func (s Sanitizer) orDefault() Sanitizer {
	if s == nil {
		return DefaultSanitizer
	}
	return s
}

// Bindable reports whether the criterion takes part in a query. FieldName,
// Operator and FilterValue must be non-blank. FilterValue1 is not checked: a
// range criterion always binds its upper parameter, even when empty.
func (f Filter) Bindable() bool {
	return strings.TrimSpace(f.FieldName) != "" &&
		strings.TrimSpace(f.Operator) != "" &&
		strings.TrimSpace(f.FilterValue) != ""
}

// IsRange reports whether the operator is BETWEEN, ignoring case.
func (f Filter) IsRange() bool {
	return strings.EqualFold(strings.TrimSpace(f.Operator), RangeOperator)
}

// ParamName returns p_<sanitized field name>.
func (f Filter) ParamName(sanitize Sanitizer) string {
	return ParamNamePrefix + sanitize.orDefault()(strings.TrimSpace(f.FieldName))
}

// UpperParamName returns the name of the second range parameter, p_<sanitized field name>1.
func (f Filter) UpperParamName(sanitize Sanitizer) string {
	return f.ParamName(sanitize) + "1"
}

// Bindable returns the criteria of filters that take part in a query, in order.
func Bindable(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.Bindable() {
			out = append(out, f)
		}
	}
	return out
}
