package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// OrdersDDL creates the orders and customers tables used by the fixtures.
var OrdersDDL = []string{
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,
		total REAL,
		created_at DATETIME,
		note TEXT
	)`,
}

// Statuses cycles through the orders fixture in this order.
var Statuses = []string{"shipped", "pending", "cancelled"}

// SeedOrders inserts customers and n orders. Order i (1-based) has status
// Statuses[(i-1)%3], total i*10, created_at 2024-01-01 plus i days and a NULL
// note for every even i.
func SeedOrders(t *testing.T, db *sql.DB, n int) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO customers (id, name, region) VALUES (1, 'Acme', 'EU'), (2, 'Globex', 'US')`)
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString("INSERT INTO orders (id, customer_id, status, total, created_at, note) VALUES ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		note := fmt.Sprintf("'order %d'", i)
		if i%2 == 0 {
			note = "NULL"
		}
		fmt.Fprintf(&b, "(%d, %d, '%s', %d, '%s', %s)",
			i, 1+i%2, Statuses[(i-1)%len(Statuses)], i*10,
			start.AddDate(0, 0, i).Format("2006-01-02 15:04:05"), note)
	}
	if n > 0 {
		_, err = db.Exec(b.String())
		require.NoError(t, err)
	}
}

// DatabaseSuite provides a seeded SQLite database per test.
type DatabaseSuite struct {
	suite.Suite
	DB     *sql.DB
	Orders int

	ctx    context.Context
	cancel context.CancelFunc
}

// SetupTest opens a fresh database seeded with Orders orders (default 25).
func (s *DatabaseSuite) SetupTest() {
	if s.Orders == 0 {
		s.Orders = 25
	}
	s.ctx, s.cancel = TestContext(s.T())
	s.DB = NewSQLiteDB(s.T(), OrdersDDL...)
	SeedOrders(s.T(), s.DB, s.Orders)
}

// TearDownTest cancels the test context.
func (s *DatabaseSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *DatabaseSuite) Context() context.Context {
	return s.ctx
}

// CountStatus returns how many seeded orders have status.
func (s *DatabaseSuite) CountStatus(status string) int64 {
	var n int64
	for i := 1; i <= s.Orders; i++ {
		if Statuses[(i-1)%len(Statuses)] == status {
			n++
		}
	}
	return n
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
