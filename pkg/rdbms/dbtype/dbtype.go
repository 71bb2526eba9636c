// Package dbtype maps semantic type names to database parameter types.
package dbtype

import (
	"regexp"
	"strings"
)

// ParamType is the type a bound command parameter is sent as.
type ParamType int

const (
	String ParamType = iota
	AnsiString
	Boolean
	Byte
	SByte
	Int16
	Int32
	Int64
	UInt16
	UInt32
	UInt64
	Single
	Double
	Decimal
	Currency
	Date
	Time
	DateTime
	DateTime2
	DateTimeOffset
	Guid
	Binary
	Xml
	Object
)

var paramTypeNames = [...]string{
	String:         "String",
	AnsiString:     "AnsiString",
	Boolean:        "Boolean",
	Byte:           "Byte",
	SByte:          "SByte",
	Int16:          "Int16",
	Int32:          "Int32",
	Int64:          "Int64",
	UInt16:         "UInt16",
	UInt32:         "UInt32",
	UInt64:         "UInt64",
	Single:         "Single",
	Double:         "Double",
	Decimal:        "Decimal",
	Currency:       "Currency",
	Date:           "Date",
	Time:           "Time",
	DateTime:       "DateTime",
	DateTime2:      "DateTime2",
	DateTimeOffset: "DateTimeOffset",
	Guid:           "Guid",
	Binary:         "Binary",
	Xml:            "Xml",
	Object:         "Object",
}

func (t ParamType) String() string {
	if int(t) < len(paramTypeNames) && t >= 0 {
		return paramTypeNames[t]
	}
	return "String"
}

// lookup is keyed by lower-cased names with any "system." prefix removed.
var lookup = map[string]ParamType{
	"string":         String,
	"char":           String,
	"text":           String,
	"ansistring":     AnsiString,
	"boolean":        Boolean,
	"bool":           Boolean,
	"bit":            Boolean,
	"byte":           Byte,
	"sbyte":          SByte,
	"int16":          Int16,
	"short":          Int16,
	"smallint":       Int16,
	"int32":          Int32,
	"int":            Int32,
	"integer":        Int32,
	"int64":          Int64,
	"long":           Int64,
	"bigint":         Int64,
	"uint16":         UInt16,
	"ushort":         UInt16,
	"uint32":         UInt32,
	"uint":           UInt32,
	"uint64":         UInt64,
	"ulong":          UInt64,
	"single":         Single,
	"float":          Single,
	"real":           Single,
	"double":         Double,
	"decimal":        Decimal,
	"numeric":        Decimal,
	"currency":       Currency,
	"money":          Currency,
	"date":           Date,
	"dateonly":       Date,
	"time":           Time,
	"timeonly":       Time,
	"timespan":       Time,
	"datetime":       DateTime,
	"timestamp":      DateTime,
	"datetime2":      DateTime2,
	"datetimeoffset": DateTimeOffset,
	"timestamptz":    DateTimeOffset,
	"guid":           Guid,
	"uuid":           Guid,
	"byte[]":         Binary,
	"binary":         Binary,
	"blob":           Binary,
	"xml":            Xml,
	"object":         Object,
}

// ToDbType maps a semantic type name such as "System.Int32" to a ParamType.
// Matching ignores case and an optional "System." prefix. Unknown, empty and
// blank names map to String.
func ToDbType(typeName string) ParamType {
	name := strings.ToLower(strings.TrimSpace(typeName))
	name = strings.TrimPrefix(name, "system.")
	name = strings.TrimSuffix(name, "?")
	if t, ok := lookup[name]; ok {
		return t
	}
	return String
}

// IsDateTime reports whether t carries a date, a time or both.
func IsDateTime(t ParamType) bool {
	switch t {
	case Date, Time, DateTime, DateTime2, DateTimeOffset:
		return true
	}
	return false
}

// IsNumeric reports whether t is an integer or floating point type.
func IsNumeric(t ParamType) bool {
	return IsInteger(t) || t == Single || t == Double || t == Decimal || t == Currency
}

// IsInteger reports whether t is an integer type.
func IsInteger(t ParamType) bool {
	switch t {
	case Byte, SByte, Int16, Int32, Int64, UInt16, UInt32, UInt64:
		return true
	}
	return false
}

var typeArgs = regexp.MustCompile(`\s*\(.*\)`)

// FromNativeType maps a column type reported by a database catalog to the
// semantic type name stored in entity structures. Unrecognized types map to
// System.String.
func FromNativeType(native string) string {
	t := strings.ToLower(strings.TrimSpace(native))
	t = typeArgs.ReplaceAllString(t, "")
	t = strings.TrimPrefix(t, "unsigned ")
	t = strings.TrimSuffix(t, " unsigned")

	switch {
	case strings.HasPrefix(t, "_") || strings.HasSuffix(t, "[]"):
		return "System.Object"
	case t == "bool" || t == "boolean" || t == "bit":
		return "System.Boolean"
	case t == "tinyint":
		return "System.Byte"
	case t == "smallint" || t == "int2" || t == "smallserial" || t == "year":
		return "System.Int16"
	case t == "int" || t == "integer" || t == "int4" || t == "serial" || t == "mediumint":
		return "System.Int32"
	case t == "bigint" || t == "int8" || t == "bigserial" || t == "long":
		return "System.Int64"
	case t == "real" || t == "float4":
		return "System.Single"
	case t == "float" || t == "float8" || t == "double" || t == "double precision":
		return "System.Double"
	case t == "decimal" || t == "numeric" || t == "number" || t == "decfloat":
		return "System.Decimal"
	case t == "money" || t == "smallmoney":
		return "System.Decimal"
	case t == "date":
		return "System.DateTime"
	case strings.HasPrefix(t, "time with time") || t == "timetz":
		return "System.DateTimeOffset"
	case t == "time" || strings.HasPrefix(t, "time without") || t == "interval":
		return "System.TimeSpan"
	case t == "datetimeoffset" || t == "timestamptz" || strings.HasPrefix(t, "timestamp with time") ||
		t == "timestamp_tz" || t == "timestamp_ltz":
		return "System.DateTimeOffset"
	case strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "datetime") || t == "smalldatetime":
		return "System.DateTime"
	case t == "uuid" || t == "uniqueidentifier":
		return "System.Guid"
	case t == "bytea" || t == "blob" || strings.HasSuffix(t, "blob") || strings.Contains(t, "binary") ||
		t == "image" || t == "raw":
		return "System.Byte[]"
	case t == "xml":
		return "System.Xml"
	}
	return "System.String"
}
