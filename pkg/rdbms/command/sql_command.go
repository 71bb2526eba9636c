package command

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SQLCommand runs against database/sql. Parameter references written with
// the configured prefix are rewritten to the dialect's placeholder style.
type SQLCommand struct {
	queryer Queryer
	style   dialect.PlaceholderStyle
	prefix  byte
	release func() error

	mu     sync.Mutex
	text   string
	params []Parameter
	open   []*sql.Rows
	closed bool
}

// NewSQLCommand creates a command over q. release, if not nil, runs once on Close.
func NewSQLCommand(q Queryer, d dialect.Dialect, prefix string, release func() error) *SQLCommand {
	p := byte('@')
	if prefix != "" {
		p = prefix[0]
	}
	return &SQLCommand{
		queryer: q,
		style:   d.Placeholders(),
		prefix:  p,
		release: release,
	}
}

// SetText sets the SQL text.
func (c *SQLCommand) SetText(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = query
}

// Text returns the SQL text as set.
func (c *SQLCommand) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// AddParameter appends a parameter.
func (c *SQLCommand) AddParameter(p Parameter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = append(c.params, p)
}

// Parameters returns a copy of the bound parameters.
func (c *SQLCommand) Parameters() []Parameter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Parameter, len(c.params))
	copy(out, c.params)
	return out
}

// Prepared returns the driver SQL and arguments that will be executed.
func (c *SQLCommand) Prepared() (string, []interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Rewrite(c.text, c.params, c.style, c.prefix)
}

func (c *SQLCommand) query(ctx context.Context) (*sql.Rows, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeQuery, "command is closed")
	}
	if c.text == "" {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeValidation, "command text is empty")
	}
	text, args := Rewrite(c.text, c.params, c.style, c.prefix)
	c.mu.Unlock()

	logger.WithContext(ctx).Debug("executing command",
		zap.String("sql", text),
		zap.Int("args", len(args)))

	rows, err := c.queryer.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.WrapContext(err, errors.ErrorTypeQuery, "query failed").WithDetail("sql", text)
	}
	return rows, nil
}

// ExecuteScalar implements Command.
func (c *SQLCommand) ExecuteScalar(ctx context.Context) (interface{}, error) {
	rows, err := c.query(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.WrapContext(err, errors.ErrorTypeQuery, "reading scalar")
		}
		return nil, nil
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "reading scalar columns")
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "scanning scalar")
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// ExecuteReader implements Command. The returned rows are also closed by Close.
func (c *SQLCommand) ExecuteReader(ctx context.Context) (Rows, error) {
	rows, err := c.query(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.open = append(c.open, rows)
	c.mu.Unlock()
	return rows, nil
}

// Close implements Command. It is safe to call more than once.
func (c *SQLCommand) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := c.open
	c.open = nil
	c.mu.Unlock()

	var firstErr error
	for _, r := range open {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.release != nil {
		if err := c.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewFactory returns a Factory that checks a dedicated connection out of db
// for every command and returns it to the pool on Close. When no connection
// can be obtained the factory returns nil.
func NewFactory(db *sql.DB, d dialect.Dialect, prefix string) Factory {
	return func(ctx context.Context) Command {
		if db == nil {
			return nil
		}
		conn, err := db.Conn(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("no connection available for command",
				zap.String("dialect", d.String()),
				zap.Error(err))
			return nil
		}
		return NewSQLCommand(conn, d, prefix, conn.Close)
	}
}

// NewQueryerFactory returns a Factory whose commands share q, for example a
// transaction. Closing those commands does not close q.
func NewQueryerFactory(q Queryer, d dialect.Dialect, prefix string) Factory {
	return func(context.Context) Command {
		if q == nil {
			return nil
		}
		return NewSQLCommand(q, d, prefix, nil)
	}
}
