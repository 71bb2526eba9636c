// Package dialect identifies database engines and renders the syntax that
// differs between them: pagination, placeholders and identifier quoting.
package dialect

import (
	"strings"
)

// Dialect identifies a database engine's SQL variant.
type Dialect int

const (
	Generic Dialect = iota
	Postgres
	MySQL
	MariaDB
	SQLite
	SQLServer
	Oracle
	DB2
	Firebird
	Snowflake
	DuckDB
)

var names = map[Dialect]string{
	Generic:   "generic",
	Postgres:  "postgres",
	MySQL:     "mysql",
	MariaDB:   "mariadb",
	SQLite:    "sqlite",
	SQLServer: "sqlserver",
	Oracle:    "oracle",
	DB2:       "db2",
	Firebird:  "firebird",
	Snowflake: "snowflake",
	DuckDB:    "duckdb",
}

var aliases = map[string]Dialect{
	"":           Generic,
	"generic":    Generic,
	"ansi":       Generic,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pg":         Postgres,
	"pgx":        Postgres,
	"supabase":   Postgres,
	"mysql":      MySQL,
	"mariadb":    MariaDB,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"sqlazure":   SQLServer,
	"oracle":     Oracle,
	"db2":        DB2,
	"firebird":   Firebird,
	"snowflake":  Snowflake,
	"duckdb":     DuckDB,
}

func (d Dialect) String() string {
	if n, ok := names[d]; ok {
		return n
	}
	return "generic"
}

// Parse maps a dialect name or common alias to a Dialect, ignoring case.
func Parse(name string) (Dialect, bool) {
	d, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// All returns every known dialect.
func All() []Dialect {
	return []Dialect{Generic, Postgres, MySQL, MariaDB, SQLite, SQLServer, Oracle, DB2, Firebird, Snowflake, DuckDB}
}

// PlaceholderStyle is how a driver expects bound parameters in SQL text.
type PlaceholderStyle int

const (
	// Question is a positional ? per occurrence
	Question PlaceholderStyle = iota
	// Dollar is a numbered $n, reused for repeated names
	Dollar
	// AtNamed is @name with sql.Named arguments
	AtNamed
	// ColonNamed is :name with sql.Named arguments
	ColonNamed
)

// Placeholders returns the placeholder style of the dialect's default driver.
func (d Dialect) Placeholders() PlaceholderStyle {
	switch d {
	case Postgres:
		return Dollar
	case SQLServer:
		return AtNamed
	case Oracle:
		return ColonNamed
	default:
		return Question
	}
}

// QuoteIdent quotes an identifier. Dotted names are quoted part by part.
func (d Dialect) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quotePart(p)
	}
	return strings.Join(parts, ".")
}

func (d Dialect) quotePart(p string) string {
	switch d {
	case MySQL, MariaDB:
		return "`" + strings.ReplaceAll(p, "`", "``") + "`"
	case SQLServer:
		return "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
}

// DefaultSchema is the schema entity discovery uses when none is configured.
// An empty string means the connection's current schema or database.
func (d Dialect) DefaultSchema() string {
	switch d {
	case Postgres, DuckDB:
		return "public"
	case SQLServer:
		return "dbo"
	case Snowflake:
		return "PUBLIC"
	default:
		return ""
	}
}
