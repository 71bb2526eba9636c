package command

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRewriteStyles(t *testing.T) {
	params := []Parameter{
		{Name: "p_status", Type: dbtype.String, Value: "shipped"},
		{Name: "p_total", Type: dbtype.Int32, Value: "10"},
	}
	text := "SELECT * FROM orders WHERE status = @p_status AND total > @p_total OR status = @P_STATUS"

	tests := []struct {
		name  string
		style dialect.PlaceholderStyle
		want  string
		args  []interface{}
	}{
		{"question", dialect.Question,
			"SELECT * FROM orders WHERE status = ? AND total > ? OR status = ?",
			[]interface{}{"shipped", int64(10), "shipped"}},
		{"dollar", dialect.Dollar,
			"SELECT * FROM orders WHERE status = $1 AND total > $2 OR status = $1",
			[]interface{}{"shipped", int64(10)}},
		{"at named", dialect.AtNamed,
			"SELECT * FROM orders WHERE status = @p_status AND total > @p_total OR status = @p_status",
			[]interface{}{sql.Named("p_status", "shipped"), sql.Named("p_total", int64(10))}},
		{"colon named", dialect.ColonNamed,
			"SELECT * FROM orders WHERE status = :p_status AND total > :p_total OR status = :p_status",
			[]interface{}{sql.Named("p_status", "shipped"), sql.Named("p_total", int64(10))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args := Rewrite(text, params, tt.style, '@')
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestRewriteLeavesLiteralsAndUnknownNames(t *testing.T) {
	params := []Parameter{{Name: "p_a", Value: "x"}}

	got, args := Rewrite("SELECT '@p_a', @@ROWCOUNT, @other, [@p_a] FROM t -- @p_a\nWHERE a = @p_a", params, dialect.Question, '@')
	assert.Equal(t, "SELECT '@p_a', @@ROWCOUNT, @other, [@p_a] FROM t -- @p_a\nWHERE a = ?", got)
	assert.Equal(t, []interface{}{"x"}, args)

	got, _ = Rewrite("SELECT a::text FROM t WHERE a = :p_a", params, dialect.Dollar, ':')
	assert.Equal(t, "SELECT a::text FROM t WHERE a = $1", got)

	got, args = Rewrite("SELECT * FROM t /* @p_a */ WHERE a = @p_a /* unterminated @p_a", params, dialect.Question, '@')
	assert.Equal(t, "SELECT * FROM t /* @p_a */ WHERE a = ? /* unterminated @p_a", got)
	assert.Equal(t, []interface{}{"x"}, args)
}

func TestRewriteWithoutParams(t *testing.T) {
	got, args := Rewrite("SELECT @x", nil, dialect.Question, '@')
	assert.Equal(t, "SELECT @x", got)
	assert.Nil(t, args)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, int64(42), Coerce(Parameter{Type: dbtype.Int64, Value: "42"}))
	assert.Equal(t, 1.5, Coerce(Parameter{Type: dbtype.Double, Value: "1.5"}))
	assert.Equal(t, true, Coerce(Parameter{Type: dbtype.Boolean, Value: "true"}))
	assert.Equal(t, "12.50", Coerce(Parameter{Type: dbtype.Decimal, Value: "12.50"}))
	assert.Equal(t, "abc", Coerce(Parameter{Type: dbtype.Int32, Value: "abc"}))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Coerce(Parameter{Type: dbtype.Date, Value: "2024-01-01"}))
	assert.Nil(t, Coerce(Parameter{Type: dbtype.String}))

	now := time.Now()
	assert.Equal(t, now, Coerce(Parameter{Type: dbtype.DateTime, Value: now}))
}

func TestSQLCommandExecuteScalar(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM orders WHERE status = ?").
		WithArgs("shipped").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	cmd := NewFactory(db, dialect.SQLite, "@")(context.Background())
	require.NotNil(t, cmd)
	defer cmd.Close()

	cmd.SetText("SELECT COUNT(*) FROM orders WHERE status = @p_status")
	cmd.AddParameter(Parameter{Name: "p_status", Type: dbtype.String, Value: "shipped"})

	v, err := cmd.ExecuteScalar(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCommandExecuteScalarNoRows(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT 1 WHERE 1 = 0").WillReturnRows(sqlmock.NewRows([]string{"x"}))

	cmd := NewQueryerFactory(db, dialect.Postgres, "@")(context.Background())
	cmd.SetText("SELECT 1 WHERE 1 = 0")

	v, err := cmd.ExecuteScalar(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSQLCommandQueryError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELEC oops").WillReturnError(assert.AnError)

	cmd := NewQueryerFactory(db, dialect.MySQL, "@")(context.Background())
	cmd.SetText("SELEC oops")

	_, err := cmd.ExecuteScalar(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSQLCommandCloseClosesReader(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2)).
		RowsWillBeClosed()

	cmd := NewFactory(db, dialect.SQLite, "@")(context.Background())
	require.NotNil(t, cmd)
	cmd.SetText("SELECT id FROM orders")

	rows, err := cmd.ExecuteReader(context.Background())
	require.NoError(t, err)
	require.True(t, rows.Next())

	require.NoError(t, cmd.Close())
	assert.NoError(t, cmd.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = cmd.ExecuteReader(context.Background())
	assert.Error(t, err)
}

func TestSQLCommandEmptyText(t *testing.T) {
	db, _ := newMock(t)
	cmd := NewQueryerFactory(db, dialect.SQLite, "@")(context.Background())
	_, err := cmd.ExecuteScalar(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFactoryUnavailable(t *testing.T) {
	assert.Nil(t, NewFactory(nil, dialect.SQLite, "@")(context.Background()))
	assert.Nil(t, NewQueryerFactory(nil, dialect.SQLite, "@")(context.Background()))

	db, mock := newMock(t)
	mock.ExpectClose()
	require.NoError(t, db.Close())
	assert.Nil(t, NewFactory(db, dialect.SQLite, "@")(context.Background()))
}

func TestParametersCopy(t *testing.T) {
	cmd := NewSQLCommand(nil, dialect.SQLite, "", nil)
	cmd.AddParameter(Parameter{Name: "p_a", Value: "1"})
	ps := cmd.Parameters()
	ps[0].Name = "changed"
	assert.Equal(t, "p_a", cmd.Parameters()[0].Name)

	cmd.SetText("SELECT @p_a")
	text, args := cmd.Prepared()
	assert.Equal(t, "SELECT ?", text)
	assert.Equal(t, []interface{}{"1"}, args)
}
