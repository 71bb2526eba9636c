package filter

import (
	"time"

	"github.com/spf13/cast"

	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
)

// ParameterSink is the part of a command the binder writes to.
type ParameterSink interface {
	AddParameter(p command.Parameter)
}

// Bind adds one parameter per bindable criterion to cmd, and a second one for
// range criteria. Criteria that are not bindable are skipped without error.
//
// Date and time typed values are parsed; when parsing fails the raw string is
// bound and left to the command to coerce.
func Bind(cmd ParameterSink, filters []Filter, sanitize Sanitizer) {
	for _, f := range filters {
		if !f.Bindable() {
			continue
		}
		cmd.AddParameter(parameter(f.ParamName(sanitize), f.ValueType, f.FilterValue))
		if f.IsRange() {
			cmd.AddParameter(parameter(f.UpperParamName(sanitize), f.ValueType, f.FilterValue1))
		}
	}
}

func parameter(name, valueType, raw string) command.Parameter {
	t := dbtype.ToDbType(valueType)
	if dbtype.IsDateTime(t) {
		if parsed, ok := parseTime(raw); ok {
			return command.Parameter{Name: name, Type: t, Value: parsed}
		}
		t = dbtype.String
	}
	return command.Parameter{Name: name, Type: t, Value: raw}
}

func parseTime(raw string) (time.Time, bool) {
	parsed, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
