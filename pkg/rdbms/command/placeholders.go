package command

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
)

// Rewrite replaces prefix-marked parameter references in text with the
// placeholders of style and returns the driver arguments in matching order.
// References to names that are not bound, and anything inside quotes or
// comments, are left untouched.
func Rewrite(text string, params []Parameter, style dialect.PlaceholderStyle, prefix byte) (string, []interface{}) {
	if len(params) == 0 {
		return text, nil
	}
	byName := make(map[string]Parameter, len(params))
	for _, p := range params {
		byName[strings.ToLower(p.Name)] = p
	}

	var (
		out      strings.Builder
		args     []interface{}
		position = map[string]int{}
	)
	out.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := skipQuoted(text, i)
			out.WriteString(text[i : end+1])
			i = end
			continue
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			end := strings.IndexByte(text[i:], '\n')
			if end == -1 {
				out.WriteString(text[i:])
				i = len(text)
				continue
			}
			out.WriteString(text[i : i+end])
			i += end - 1
			continue
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end == -1 {
				out.WriteString(text[i:])
				i = len(text)
				continue
			}
			out.WriteString(text[i : i+end+4])
			i += end + 3
			continue
		case c != prefix:
			out.WriteByte(c)
			continue
		}

		// c is the prefix; doubled markers such as @@ROWCOUNT or :: casts are not parameters
		if (i > 0 && text[i-1] == prefix) || (i+1 < len(text) && text[i+1] == prefix) {
			out.WriteByte(c)
			continue
		}
		end := i + 1
		for end < len(text) && isIdentByte(text[end], end == i+1) {
			end++
		}
		name := text[i+1 : end]
		p, ok := byName[strings.ToLower(name)]
		if name == "" || !ok {
			out.WriteByte(c)
			continue
		}

		key := strings.ToLower(name)
		switch style {
		case dialect.Dollar:
			idx, seen := position[key]
			if !seen {
				args = append(args, Coerce(p))
				idx = len(args)
				position[key] = idx
			}
			out.WriteString("$" + strconv.Itoa(idx))
		case dialect.AtNamed, dialect.ColonNamed:
			if _, seen := position[key]; !seen {
				args = append(args, sql.Named(p.Name, Coerce(p)))
				position[key] = len(args)
			}
			if style == dialect.AtNamed {
				out.WriteString("@" + p.Name)
			} else {
				out.WriteString(":" + p.Name)
			}
		default:
			args = append(args, Coerce(p))
			out.WriteByte('?')
		}
		i = end - 1
	}
	return out.String(), args
}

func isIdentByte(b byte, first bool) bool {
	switch {
	case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return !first
	}
	return false
}

func skipQuoted(text string, start int) int {
	quote := text[start]
	if quote == '[' {
		quote = ']'
	}
	for i := start + 1; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if quote != ']' && i+1 < len(text) && text[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(text) - 1
}

// Coerce converts a string value to the Go type matching its ParamType.
// Values that do not convert are returned unchanged for the driver to handle.
func Coerce(p Parameter) interface{} {
	s, ok := p.Value.(string)
	if !ok {
		return p.Value
	}
	var (
		v   interface{}
		err error
	)
	switch {
	case dbtype.IsInteger(p.Type):
		v, err = cast.ToInt64E(s)
	case p.Type == dbtype.Single || p.Type == dbtype.Double:
		v, err = cast.ToFloat64E(s)
	case p.Type == dbtype.Boolean:
		v, err = cast.ToBoolE(s)
	case dbtype.IsDateTime(p.Type):
		v, err = cast.ToTimeE(s)
	default:
		return s
	}
	if err != nil {
		return s
	}
	return v
}
