package datasource

import (
	"fmt"
	"sort"
	"sync"

	// database/sql drivers shipped with the data source
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
)

// Driver binds a dialect to the database/sql driver that serves it.
type Driver struct {
	Dialect dialect.Dialect
	// Name is the name the driver registered with database/sql
	Name        string
	Description string
}

// Registry maps dialects to drivers
type Registry struct {
	drivers map[dialect.Dialect]Driver
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

func init() {
	for _, d := range []Driver{
		{Dialect: dialect.Postgres, Name: "pgx", Description: "PostgreSQL via jackc/pgx"},
		{Dialect: dialect.MySQL, Name: "mysql", Description: "MySQL via go-sql-driver"},
		{Dialect: dialect.MariaDB, Name: "mysql", Description: "MariaDB via go-sql-driver"},
		{Dialect: dialect.SQLServer, Name: "sqlserver", Description: "SQL Server and Azure SQL via go-mssqldb"},
		{Dialect: dialect.SQLite, Name: "sqlite", Description: "SQLite via modernc.org/sqlite"},
		{Dialect: dialect.Snowflake, Name: "snowflake", Description: "Snowflake via gosnowflake"},
	} {
		if err := Register(d); err != nil {
			panic(err)
		}
	}
}

// NewRegistry creates an empty driver registry
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[dialect.Dialect]Driver),
		logger:  logger.Get().With(zap.String("component", "driver_registry")),
	}
}

// Register adds a driver for d.Dialect. A dialect has at most one driver.
func (r *Registry) Register(d Driver) error {
	if d.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "driver name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.drivers[d.Dialect]; exists {
		return errors.New(errors.ErrorTypeConflict,
			fmt.Sprintf("dialect %s already served by driver %s", d.Dialect, existing.Name))
	}

	r.drivers[d.Dialect] = d
	r.logger.Debug("driver registered",
		zap.String("dialect", d.Dialect.String()),
		zap.String("driver", d.Name))
	return nil
}

// Lookup returns the driver registered for d
func (r *Registry) Lookup(d dialect.Dialect) (Driver, error) {
	r.mu.RLock()
	drv, exists := r.drivers[d]
	r.mu.RUnlock()

	if !exists {
		return Driver{}, errors.New(errors.ErrorTypeNotFound,
			fmt.Sprintf("no driver registered for dialect %s", d))
	}
	return drv, nil
}

// List returns the registered drivers ordered by dialect name
func (r *Registry) List() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].Dialect.String() < drivers[j].Dialect.String()
	})
	return drivers
}

// Has checks if a driver is registered for d
func (r *Registry) Has(d dialect.Dialect) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.drivers[d]
	return exists
}

// Clear removes all registered drivers (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = make(map[dialect.Dialect]Driver)
}

// Global registry functions

// Register adds a driver to the global registry
func Register(d Driver) error {
	return globalRegistry.Register(d)
}

// Lookup finds a driver in the global registry
func Lookup(d dialect.Dialect) (Driver, error) {
	return globalRegistry.Lookup(d)
}

// List returns the drivers of the global registry
func List() []Driver {
	return globalRegistry.List()
}

// GetGlobalRegistry returns the global registry instance
func GetGlobalRegistry() *Registry {
	return globalRegistry
}
