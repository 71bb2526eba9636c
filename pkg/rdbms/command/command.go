// Package command is the small command abstraction the core executes
// queries through: SQL text, typed parameters and scalar or reader execution.
package command

import (
	"context"

	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
)

// Parameter is one bound value. Name excludes the placeholder prefix.
type Parameter struct {
	Name  string
	Type  dbtype.ParamType
	Value interface{}
}

// Rows is a forward-only cursor. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Command is a configurable, executable query.
type Command interface {
	SetText(query string)
	Text() string
	AddParameter(p Parameter)
	Parameters() []Parameter
	// ExecuteScalar returns the first column of the first row, or nil when there are no rows.
	ExecuteScalar(ctx context.Context) (interface{}, error)
	// ExecuteReader returns a cursor over all rows. The caller closes it.
	ExecuteReader(ctx context.Context) (Rows, error)
	// Close releases the command and any cursor it still has open.
	Close() error
}

// Factory opens a fresh command. A nil Command means no command is
// available and is not an error.
type Factory func(ctx context.Context) Command
