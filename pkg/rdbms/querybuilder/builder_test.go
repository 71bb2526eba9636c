package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
)

var shipped = filter.Filter{FieldName: "status", Operator: "=", FilterValue: "shipped"}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		filters []filter.Filter
		join    JoinHint
		want    string
	}{
		{
			name:    "appends where",
			base:    "SELECT * FROM orders",
			filters: []filter.Filter{shipped},
			want:    "SELECT * FROM orders WHERE status = @p_status",
		},
		{
			name:    "no bindable filters leaves query",
			base:    "SELECT * FROM orders;",
			filters: []filter.Filter{{FieldName: "status", Operator: "=", FilterValue: ""}},
			want:    "SELECT * FROM orders",
		},
		{
			name:    "inserts before order by",
			base:    "SELECT * FROM orders ORDER BY id DESC",
			filters: []filter.Filter{shipped},
			want:    "SELECT * FROM orders WHERE status = @p_status ORDER BY id DESC",
		},
		{
			name: "inserts before group by",
			base: "SELECT status, COUNT(*) FROM orders GROUP BY status HAVING COUNT(*) > 1",
			filters: []filter.Filter{{
				FieldName: "created", Operator: "between", FilterValue: "2024-01-01", FilterValue1: "2024-12-31",
			}},
			want: "SELECT status, COUNT(*) FROM orders WHERE created BETWEEN @p_created AND @p_created1 GROUP BY status HAVING COUNT(*) > 1",
		},
		{
			name:    "range without upper value keeps clause",
			base:    "SELECT * FROM orders",
			filters: []filter.Filter{{FieldName: "total", Operator: "between", FilterValue: "1"}},
			want:    "SELECT * FROM orders WHERE total BETWEEN @p_total AND @p_total1",
		},
		{
			name:    "merges existing where",
			base:    "SELECT * FROM orders WHERE region = 'EU' OR region = 'UK' ORDER BY id",
			filters: []filter.Filter{shipped},
			want:    "SELECT * FROM orders WHERE (region = 'EU' OR region = 'UK') AND status = @p_status ORDER BY id",
		},
		{
			name: "or join with existing where",
			base: "SELECT * FROM orders WHERE deleted = 0",
			filters: []filter.Filter{
				shipped,
				{FieldName: "total", Operator: ">=", FilterValue: "100"},
			},
			join: Or,
			want: "SELECT * FROM orders WHERE (deleted = 0) AND (status = @p_status OR total >= @p_total)",
		},
		{
			name: "join keeps subquery where",
			base: "SELECT o.*, c.name FROM orders o JOIN (SELECT * FROM customers WHERE active = 1) c ON c.id = o.customer_id",
			filters: []filter.Filter{
				{FieldName: "o.status", Operator: "like", FilterValue: "ship%"},
			},
			want: "SELECT o.*, c.name FROM orders o JOIN (SELECT * FROM customers WHERE active = 1) c ON c.id = o.customer_id WHERE o.status LIKE @p_ostatus",
		},
		{
			name:    "not like and inequality",
			base:    "SELECT * FROM t",
			filters: []filter.Filter{{FieldName: "a", Operator: "NOT  LIKE", FilterValue: "x%"}, {FieldName: "b", Operator: "!=", FilterValue: "1"}},
			want:    "SELECT * FROM t WHERE a NOT LIKE @p_a AND b <> @p_b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyFilters(tt.base, tt.filters, tt.join, "@", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFiltersPrefix(t *testing.T) {
	got, err := ApplyFilters("SELECT * FROM orders", []filter.Filter{shipped}, And, ":", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders WHERE status = :p_status", got)
}

func TestApplyFiltersErrors(t *testing.T) {
	_, err := ApplyFilters("  ", nil, And, "@", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = ApplyFilters("SELECT * FROM t", []filter.Filter{{FieldName: "a", Operator: "~~", FilterValue: "x"}}, And, "@", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = ApplyFilters("SELECT * FROM t", []filter.Filter{{FieldName: "a; DROP TABLE t", Operator: "=", FilterValue: "x"}}, And, "@", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestClauseQuotedFields(t *testing.T) {
	for _, field := range []string{`"Order Date"`, "[Order Date]", "`order date`", "dbo.orders.id"} {
		_, err := Clause(filter.Filter{FieldName: field, Operator: "=", FilterValue: "x"}, "@", nil)
		assert.NoError(t, err, field)
	}
}

func TestParseJoinHint(t *testing.T) {
	assert.Equal(t, Or, ParseJoinHint(" or "))
	assert.Equal(t, And, ParseJoinHint("AND"))
	assert.Equal(t, And, ParseJoinHint("xor"))
}
