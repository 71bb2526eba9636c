package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/models"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/stream"
)

// entity names are plain or quoted identifiers, optionally schema qualified
var entityNamePattern = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_$]*|"[^"]+"|\[[^\]]+\]|` + "`[^`]+`" + `)(?:\.(?:[A-Za-z_][A-Za-z0-9_$]*|"[^"]+"|\[[^\]]+\]|` + "`[^`]+`" + `))?$`)

// ValidateEntityName rejects names that cannot be a table or view reference.
func ValidateEntityName(name string) error {
	if !entityNamePattern.MatchString(strings.TrimSpace(name)) {
		return errors.Newf(errors.ErrorTypeValidation, "invalid entity name %q", name)
	}
	return nil
}

func unquote(part string) string {
	if len(part) >= 2 {
		switch {
		case part[0] == '"' && part[len(part)-1] == '"',
			part[0] == '[' && part[len(part)-1] == ']',
			part[0] == '`' && part[len(part)-1] == '`':
			return part[1 : len(part)-1]
		}
	}
	return part
}

// splitEntityName returns the schema and table of a validated name.
func splitEntityName(name string) (schema, table string) {
	name = strings.TrimSpace(name)
	if entityNamePattern.MatchString(name) {
		// the first part ends at the first dot outside quotes
		inQuote := byte(0)
		for i := 0; i < len(name); i++ {
			c := name[i]
			switch {
			case inQuote != 0:
				if c == inQuote {
					inQuote = 0
				}
			case c == '"' || c == '`':
				inQuote = c
			case c == '[':
				inQuote = ']'
			case c == '.':
				return unquote(name[:i]), unquote(name[i+1:])
			}
		}
	}
	return "", unquote(name)
}

func catalogCommand(db *sql.DB, d dialect.Dialect, text string, params ...command.Parameter) *command.SQLCommand {
	cmd := command.NewSQLCommand(db, d, "@", nil)
	cmd.SetText(text)
	for _, p := range params {
		cmd.AddParameter(p)
	}
	return cmd
}

func stringParam(name, value string) command.Parameter {
	return command.Parameter{Name: name, Type: dbtype.String, Value: value}
}

// entityListQuery returns the catalog query listing tables and views.
func entityListQuery(d dialect.Dialect, schema string) (string, []command.Parameter) {
	p := []command.Parameter{stringParam("p_schema", schema)}
	switch d {
	case dialect.SQLite:
		return `SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`, nil
	case dialect.Oracle:
		if schema == "" {
			return `SELECT table_name FROM user_tables UNION SELECT view_name FROM user_views ORDER BY 1`, nil
		}
		return `SELECT table_name FROM all_tables WHERE owner = @p_schema UNION SELECT view_name FROM all_views WHERE owner = @p_schema ORDER BY 1`, p
	case dialect.DB2:
		if schema == "" {
			return `SELECT TRIM(tabname) FROM syscat.tables WHERE tabschema = CURRENT SCHEMA ORDER BY 1`, nil
		}
		return `SELECT TRIM(tabname) FROM syscat.tables WHERE tabschema = @p_schema ORDER BY 1`, p
	case dialect.Firebird:
		return `SELECT TRIM(rdb$relation_name) FROM rdb$relations WHERE COALESCE(rdb$system_flag, 0) = 0 ORDER BY 1`, nil
	case dialect.MySQL, dialect.MariaDB:
		if schema == "" {
			return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`, nil
		}
	}
	if schema == "" {
		return `SELECT table_name FROM information_schema.tables WHERE table_schema NOT IN ('information_schema', 'pg_catalog') ORDER BY table_name`, nil
	}
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = @p_schema ORDER BY table_name`, p
}

func usesInformationSchema(d dialect.Dialect) bool {
	switch d {
	case dialect.Postgres, dialect.MySQL, dialect.MariaDB, dialect.SQLServer, dialect.Snowflake, dialect.DuckDB:
		return true
	}
	return false
}

func schemaPredicate(d dialect.Dialect, column, schema string) string {
	if schema == "" {
		if d == dialect.MySQL || d == dialect.MariaDB {
			return column + " = DATABASE()"
		}
		return "1=1"
	}
	return column + " = @p_schema"
}

func (ds *RDBMSDataSource) queryEntityNames(ctx context.Context, schema string) ([]string, error) {
	text, params := entityListQuery(ds.dialect, schema)
	cmd := catalogCommand(ds.db, ds.dialect, text, params...)
	defer cmd.Close()

	rows, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, 32)
	for rec, err := range stream.Rows(rows) {
		if err != nil {
			return nil, err
		}
		if rec.Len() > 0 {
			names = append(names, strings.TrimSpace(cast.ToString(rec.Values()[0])))
		}
	}
	return names, nil
}

// columns reads the catalog description of schema.table. It returns no
// fields when the dialect has no catalog query.
func (ds *RDBMSDataSource) columns(ctx context.Context, schema, table string) ([]models.EntityField, error) {
	switch {
	case ds.dialect == dialect.SQLite:
		return ds.sqliteColumns(ctx, table)
	case usesInformationSchema(ds.dialect):
		return ds.informationSchemaColumns(ctx, schema, table)
	}
	return nil, nil
}

func (ds *RDBMSDataSource) sqliteColumns(ctx context.Context, table string) ([]models.EntityField, error) {
	cmd := catalogCommand(ds.db, ds.dialect, fmt.Sprintf("PRAGMA table_info(%s)", ds.dialect.QuoteIdent(table)))
	defer cmd.Close()

	rows, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, err
	}
	var fields []models.EntityField
	for rec, err := range stream.Rows(rows) {
		if err != nil {
			return nil, err
		}
		native := cast.ToString(rec.Value("type"))
		pk := cast.ToInt(rec.Value("pk")) > 0
		fields = append(fields, models.EntityField{
			FieldName:   cast.ToString(rec.Value("name")),
			FieldType:   dbtype.FromNativeType(native),
			NativeType:  native,
			AllowDBNull: cast.ToInt(rec.Value("notnull")) == 0 && !pk,
			IsKey:       pk,
			Ordinal:     cast.ToInt(rec.Value("cid")) + 1,
		})
	}
	return fields, nil
}

func (ds *RDBMSDataSource) informationSchemaColumns(ctx context.Context, schema, table string) ([]models.EntityField, error) {
	text := `SELECT column_name, data_type, is_nullable, ordinal_position FROM information_schema.columns ` +
		`WHERE table_name = @p_table AND ` + schemaPredicate(ds.dialect, "table_schema", schema) +
		` ORDER BY ordinal_position`
	cmd := catalogCommand(ds.db, ds.dialect, text, stringParam("p_table", table), stringParam("p_schema", schema))
	defer cmd.Close()

	rows, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, err
	}
	var fields []models.EntityField
	for rec, err := range stream.Rows(rows) {
		if err != nil {
			return nil, err
		}
		v := rec.Values()
		native := cast.ToString(v[1])
		fields = append(fields, models.EntityField{
			FieldName:   cast.ToString(v[0]),
			FieldType:   dbtype.FromNativeType(native),
			NativeType:  native,
			AllowDBNull: strings.EqualFold(cast.ToString(v[2]), "YES"),
			Ordinal:     cast.ToInt(v[3]),
		})
	}
	if len(fields) > 0 {
		ds.markKeys(ctx, schema, table, fields)
	}
	return fields, nil
}

// markKeys flags primary key columns. Failures only cost the key flags.
func (ds *RDBMSDataSource) markKeys(ctx context.Context, schema, table string, fields []models.EntityField) {
	if ds.dialect == dialect.Snowflake || ds.dialect == dialect.DuckDB {
		return
	}
	text := `SELECT kcu.column_name FROM information_schema.table_constraints tc ` +
		`JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name ` +
		`AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name ` +
		`WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = @p_table AND ` +
		schemaPredicate(ds.dialect, "tc.table_schema", schema)
	cmd := catalogCommand(ds.db, ds.dialect, text, stringParam("p_table", table), stringParam("p_schema", schema))
	defer cmd.Close()

	rows, err := cmd.ExecuteReader(ctx)
	if err != nil {
		ds.logger.Debug("primary key lookup failed", zap.String("table", table), zap.Error(err))
		return
	}
	for rec, err := range stream.Rows(rows) {
		if err != nil {
			ds.logger.Debug("primary key lookup failed", zap.String("table", table), zap.Error(err))
			return
		}
		col := cast.ToString(rec.Values()[0])
		for i := range fields {
			if strings.EqualFold(fields[i].FieldName, col) {
				fields[i].IsKey = true
			}
		}
	}
}

// probe describes the result set of a query that returns no rows.
func (ds *RDBMSDataSource) probe(ctx context.Context, text string) ([]models.EntityField, error) {
	rows, err := ds.db.QueryContext(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to describe query result").
			WithDetail("query", text)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read column types")
	}
	fields := make([]models.EntityField, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		native := ct.DatabaseTypeName()
		fields[i] = models.EntityField{
			FieldName:   ct.Name(),
			FieldType:   dbtype.FromNativeType(native),
			NativeType:  native,
			AllowDBNull: nullable || !ok,
			Ordinal:     i + 1,
		}
	}
	return fields, nil
}

func probeTableQuery(from string) string {
	return "SELECT * FROM " + from + " WHERE 1=0"
}

func probeQuery(query string) string {
	return "SELECT * FROM (" + strings.TrimRight(strings.TrimSpace(query), ";") + ") q WHERE 1=0"
}

func newStructure(entity, datasourceEntity string, fields []models.EntityField) *models.EntityStructure {
	s := &models.EntityStructure{
		EntityName:           entity,
		DatasourceEntityName: datasourceEntity,
		Fields:               fields,
		DiscoveredAt:         time.Now().UTC(),
	}
	for _, f := range fields {
		if f.IsKey {
			s.PrimaryKeys = append(s.PrimaryKeys, f.FieldName)
		}
	}
	return s
}
