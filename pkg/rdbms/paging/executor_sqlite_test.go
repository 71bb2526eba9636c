package paging

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
	"github.com/thetechidea/beepdatasources/pkg/testutil"
)

type sqliteSuite struct {
	testutil.DatabaseSuite
	exec    *Executor
	factory command.Factory
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, &sqliteSuite{DatabaseSuite: testutil.DatabaseSuite{Orders: 25}})
}

func (s *sqliteSuite) SetupTest() {
	s.DatabaseSuite.SetupTest()
	s.exec = New(nil, WithLogger(testutil.TestLogger(s.T())))
	s.factory = command.NewFactory(s.DB, dialect.SQLite, "@")
}

func (s *sqliteSuite) execute(base string, filters []filter.Filter, page, size int) (int64, int) {
	res, err := s.exec.Execute(s.Context(), s.factory, Request{
		BaseQuery:  base,
		Filters:    filters,
		Dialect:    dialect.SQLite,
		PageNumber: page,
		PageSize:   size,
	})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	return res.TotalRecords, len(res.Rows)
}

func (s *sqliteSuite) TestRowCountFollowsPageFormula() {
	want := s.CountStatus("shipped")
	s.Require().Equal(int64(9), want)

	for _, size := range []int{1, 2, 4, 9, 10} {
		for page := 1; page <= 6; page++ {
			total, rows := s.execute("SELECT * FROM orders ORDER BY id", []filter.Filter{shipped}, page, size)
			expected := min(int64(size), max(0, total-int64((page-1)*size)))

			s.Equal(want, total, "total must not depend on page (size %d page %d)", size, page)
			s.Equal(int(expected), rows, "size %d page %d", size, page)
		}
	}
	s.False(s.exec.Info().Failed())
}

func (s *sqliteSuite) TestUnfilteredPaging() {
	total, rows := s.execute("SELECT * FROM orders", nil, 3, 10)
	s.Equal(int64(25), total)
	s.Equal(5, rows)
}

func (s *sqliteSuite) TestJoinCount() {
	base := "SELECT o.id, o.status, c.name FROM orders o JOIN customers c ON c.id = o.customer_id ORDER BY o.id"
	filters := []filter.Filter{{FieldName: "c.name", Operator: "=", FilterValue: "Acme"}}

	total, rows := s.execute(base, filters, 1, 5)
	s.Equal(int64(12), total)
	s.Equal(5, rows)

	total, rows = s.execute(base, filters, 3, 5)
	s.Equal(int64(12), total)
	s.Equal(2, rows)
}

func (s *sqliteSuite) TestNullsAndTypes() {
	res, err := s.exec.Execute(s.Context(), s.factory, Request{
		BaseQuery:  "SELECT id, status, total, note FROM orders ORDER BY id",
		Filters:    []filter.Filter{{FieldName: "total", Operator: "<=", FilterValue: "20", ValueType: "System.Double"}},
		Dialect:    dialect.SQLite,
		PageNumber: 1,
		PageSize:   10,
	})
	s.Require().NoError(err)
	s.Require().Len(res.Rows, 2)
	s.Equal(int64(2), res.TotalRecords)

	first, second := res.Rows[0], res.Rows[1]
	s.Equal("order 1", first.Value("NOTE"))
	s.True(second.IsNull("note"))
	s.Equal(int64(2), second.Value("Id"))
}

func (s *sqliteSuite) TestExistingWhereAndLike() {
	total, _ := s.execute(
		"SELECT * FROM orders WHERE customer_id = 2",
		[]filter.Filter{{FieldName: "status", Operator: "like", FilterValue: "ship%"}},
		1, 50,
	)
	// odd ids belong to customer 2; shipped ids are 1, 4, 7, ...
	s.Equal(int64(5), total)
}

func (s *sqliteSuite) TestBadSQLFailsSoft() {
	res, err := s.exec.Execute(s.Context(), s.factory, Request{
		BaseQuery: "SELECT * FROM missing_table", Dialect: dialect.SQLite, PageNumber: 1, PageSize: 10,
	})
	s.Error(err)
	s.NotNil(res)
	s.Empty(res.Rows)
	s.True(s.exec.Info().Failed())
	s.Contains(s.exec.Info().Message(), "missing_table")
}
