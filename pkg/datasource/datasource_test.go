package datasource

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thetechidea/beepdatasources/pkg/config"
	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/stream"
	dbtest "github.com/thetechidea/beepdatasources/pkg/testutil"
)

type dataSourceSuite struct {
	dbtest.DatabaseSuite
	ds *RDBMSDataSource
}

func TestDataSourceSuite(t *testing.T) {
	suite.Run(t, &dataSourceSuite{DatabaseSuite: dbtest.DatabaseSuite{Orders: 25}})
}

func (s *dataSourceSuite) SetupTest() {
	s.DatabaseSuite.SetupTest()
	logger.Set(dbtest.TestLogger(s.T()))

	cfg := config.NewDataSourceConfig(s.T().Name(), "sqlite")
	ds, err := New(s.DB, cfg)
	s.Require().NoError(err)
	s.ds = ds
}

func (s *dataSourceSuite) TearDownTest() {
	s.Require().NoError(s.ds.Close())
	s.DatabaseSuite.TearDownTest()
}

func (s *dataSourceSuite) TestGetEntitiesNames() {
	names, err := s.ds.GetEntitiesNames(s.Context())
	s.Require().NoError(err)
	s.Equal([]string{"customers", "orders"}, names)

	_, err = s.DB.Exec(`CREATE TABLE refunds (id INTEGER PRIMARY KEY)`)
	s.Require().NoError(err)

	names, err = s.ds.GetEntitiesNames(s.Context())
	s.Require().NoError(err)
	s.Equal([]string{"customers", "orders"}, names, "list is served from cache")

	s.ds.InvalidateCaches()
	names, err = s.ds.GetEntitiesNames(s.Context())
	s.Require().NoError(err)
	s.Equal([]string{"customers", "orders", "refunds"}, names)
}

func (s *dataSourceSuite) TestGetEntityStructure() {
	st, err := s.ds.GetEntityStructure(s.Context(), "ORDERS", false)
	s.Require().NoError(err)

	s.Equal("ORDERS", st.EntityName)
	s.Equal("orders", st.DatasourceEntityName)
	s.Equal([]string{"id", "customer_id", "status", "total", "created_at", "note"}, st.FieldNames())
	s.Equal([]string{"id"}, st.PrimaryKeys)

	id, _ := st.Field("id")
	s.True(id.IsKey)
	s.False(id.AllowDBNull)
	s.Equal(1, id.Ordinal)

	status, _ := st.Field("status")
	s.False(status.AllowDBNull)
	s.Equal("System.String", status.FieldType)

	total, _ := st.Field("total")
	s.Equal("System.Single", total.FieldType)
	s.Equal("REAL", total.NativeType)

	created, _ := st.Field("created_at")
	s.Equal("System.DateTime", created.FieldType)

	note, _ := st.Field("note")
	s.True(note.AllowDBNull)
}

func (s *dataSourceSuite) TestGetEntityStructureCachesUntilRefresh() {
	first, err := s.ds.GetEntityStructure(s.Context(), "orders", false)
	s.Require().NoError(err)

	_, err = s.DB.Exec(`ALTER TABLE orders ADD COLUMN carrier TEXT`)
	s.Require().NoError(err)

	cached, err := s.ds.GetEntityStructure(s.Context(), "orders", false)
	s.Require().NoError(err)
	s.Same(first, cached)
	s.Len(cached.Fields, 6)

	fresh, err := s.ds.GetEntityStructure(s.Context(), "orders", true)
	s.Require().NoError(err)
	s.Len(fresh.Fields, 7)

	again, err := s.ds.GetEntityStructure(s.Context(), "orders", false)
	s.Require().NoError(err)
	s.Same(fresh, again)
}

func (s *dataSourceSuite) TestGetEntityStructureErrors() {
	_, err := s.ds.GetEntityStructure(s.Context(), "shipments", false)
	s.True(errors.IsType(err, errors.ErrorTypeNotFound), "got %v", err)
	s.True(s.ds.ErrorInfo().Failed())

	_, err = s.ds.GetEntityStructure(s.Context(), "orders; DROP TABLE orders", false)
	s.True(errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)

	var n int
	s.Require().NoError(s.DB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n))
	s.Equal(25, n)
}

func (s *dataSourceSuite) TestGetEntityPaged() {
	shipped := []filter.Filter{{FieldName: "status", Operator: "=", FilterValue: "shipped"}}

	res, err := s.ds.GetEntityPaged(s.Context(), "orders", shipped, 1, 4)
	s.Require().NoError(err)
	s.Equal(s.CountStatus("shipped"), res.TotalRecords)
	s.Len(res.Rows, 4)
	s.Equal(int64(3), res.TotalPages())

	res, err = s.ds.GetEntityPaged(s.Context(), "orders", shipped, 3, 4)
	s.Require().NoError(err)
	s.Len(res.Rows, 1)
	s.False(res.HasNext())
}

func (s *dataSourceSuite) TestGetEntityPagedClampsCoordinates() {
	res, err := s.ds.GetEntityPaged(s.Context(), "orders", nil, 0, 0)
	s.Require().NoError(err)
	s.Equal(1, res.PageNumber)
	s.Equal(config.DefaultPageSize, res.PageSize)
	s.Equal(int64(25), res.TotalRecords)
	s.Len(res.Rows, 25)
}

func (s *dataSourceSuite) TestFilterTypesDefaultFromStructure() {
	// total is REAL, so "200" binds as a number rather than text
	res, err := s.ds.GetEntityPaged(s.Context(), "orders",
		[]filter.Filter{{FieldName: "total", Operator: ">", FilterValue: "200"}}, 1, 50)
	s.Require().NoError(err)
	s.Equal(int64(5), res.TotalRecords)
	for _, r := range res.Rows {
		s.Greater(r.Value("total"), 200.0)
	}
}

func (s *dataSourceSuite) TestGetEntityStreams() {
	seq := s.ds.GetEntity(s.Context(), "orders",
		[]filter.Filter{{FieldName: "status", Operator: "=", FilterValue: "pending"}})

	var n int64
	for rec, err := range seq {
		s.Require().NoError(err)
		s.Equal("pending", rec.Value("status"))
		n++
	}
	s.Equal(s.CountStatus("pending"), n)

	for _, err := range seq {
		s.ErrorIs(err, stream.ErrConsumed)
	}
	s.Zero(testutil.ToFloat64(metrics.OpenCommands.WithLabelValues(s.ds.Name())))
}

func (s *dataSourceSuite) TestGetEntityEarlyBreakReleasesCommand() {
	for _, err := range s.ds.GetEntity(s.Context(), "orders", nil) {
		s.Require().NoError(err)
		break
	}
	s.Zero(testutil.ToFloat64(metrics.OpenCommands.WithLabelValues(s.ds.Name())))
}

func (s *dataSourceSuite) TestGetEntityUnknownYieldsError() {
	var errs []error
	for _, err := range s.ds.GetEntity(s.Context(), "missing", nil) {
		errs = append(errs, err)
	}
	s.Require().Len(errs, 1)
	s.True(errors.IsType(errs[0], errors.ErrorTypeNotFound))
}

func (s *dataSourceSuite) TestQueryPagedWithJoin() {
	res, err := s.ds.QueryPaged(s.Context(),
		`SELECT o.id, c.name FROM orders o JOIN customers c ON c.id = o.customer_id ORDER BY o.id`,
		[]filter.Filter{{FieldName: "c.name", Operator: "=", FilterValue: "Globex"}}, 2, 5)
	s.Require().NoError(err)
	s.Equal(int64(13), res.TotalRecords)
	s.Len(res.Rows, 5)
	s.Equal(int64(11), res.Rows[0].Value("id"))

	_, err = s.ds.QueryPaged(s.Context(), "  ", nil, 1, 5)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
}

func (s *dataSourceSuite) TestRunQuery() {
	rows, err := s.ds.RunQuery(s.Context(), `SELECT id, note FROM orders ORDER BY id`, 3)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("order 1", rows[0].Value("note"))
	s.True(rows[1].IsNull("note"))

	all, err := s.ds.RunQuery(s.Context(), `SELECT id FROM orders`, 0)
	s.Require().NoError(err)
	s.Len(all, 25)

	_, err = s.ds.RunQuery(s.Context(), `SELECT nope FROM orders`, 0)
	s.Error(err)
	s.True(s.ds.ErrorInfo().Failed())
}

func (s *dataSourceSuite) TestGetQueryStructure() {
	st, err := s.ds.GetQueryStructure(s.Context(), "doubled",
		`SELECT id, total * 2 AS doubled FROM orders;`)
	s.Require().NoError(err)
	s.Equal([]string{"id", "doubled"}, st.FieldNames())
}

func (s *dataSourceSuite) TestWarmup() {
	s.Require().NoError(s.ds.Warmup(s.Context(), nil, 2))
	s.Equal(2, s.ds.structures.Len())

	err := s.ds.Warmup(s.Context(), []string{"orders", "missing"}, 1)
	s.True(errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestOpenSQLite(t *testing.T) {
	ctx, cancel := dbtest.TestContext(t)
	defer cancel()

	cfg := config.NewDataSourceConfig("file", "sqlite")
	cfg.DSN = dbtest.SQLitePath(t)
	ds, err := Open(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, ds.Ping(ctx))
	names, err := ds.GetEntitiesNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())
	assert.Error(t, ds.Ping(ctx))
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(ctx, &config.DataSourceConfig{Name: "x", Dialect: "sqlite"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "missing dsn")

	_, err = Open(ctx, &config.DataSourceConfig{Name: "x", Dialect: "cobol", DSN: "x"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(ctx, &config.DataSourceConfig{Name: "x", Dialect: "oracle", DSN: "x"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound), "no oracle driver is built in")

	_, err = New(nil, config.NewDataSourceConfig("x", "sqlite"))
	assert.Error(t, err)
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	db := dbtest.NewSQLiteDB(t)
	cfg := config.NewDataSourceConfig("limited", "sqlite")
	cfg.Reliability.RateLimitPerSec = 0.001
	cfg.Reliability.Burst = 1
	ds, err := New(db, cfg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = ds.GetEntitiesNames(ctx)
	require.NoError(t, err, "burst allows the first call")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ds.GetEntitiesNames(cctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout), "got %v", err)
}
