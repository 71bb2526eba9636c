package config

import (
	"fmt"
	"strings"
	"time"
)

// DataSourceConfig is the configuration of one RDBMS data source.
// It is organized into sections that mirror the runtime components:
// paging, connection pool, timeouts, caches, reliability, logging and observability.
type DataSourceConfig struct {
	// Name identifies the data source instance
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Dialect selects SQL syntax (postgres, mysql, sqlite, sqlserver, oracle, ...)
	Dialect string `yaml:"dialect" json:"dialect" mapstructure:"dialect"`
	// Driver overrides the database/sql driver name registered for the dialect
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`
	// DSN is the driver connection string
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	// Schema restricts entity discovery to one schema
	Schema string `yaml:"schema" json:"schema" mapstructure:"schema"`
	// ParamPrefix is the placeholder marker used in generated filter SQL
	ParamPrefix string `yaml:"param_prefix" json:"param_prefix" mapstructure:"param_prefix"`
	// JoinHint joins filter clauses, AND or OR
	JoinHint string `yaml:"join_hint" json:"join_hint" mapstructure:"join_hint"`

	Paging        PagingConfig        `yaml:"paging" json:"paging" mapstructure:"paging"`
	Pool          PoolConfig          `yaml:"pool" json:"pool" mapstructure:"pool"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`
	Cache         CacheConfig         `yaml:"cache" json:"cache" mapstructure:"cache"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability" mapstructure:"reliability"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// PagingConfig bounds page requests.
type PagingConfig struct {
	// DefaultPageSize replaces page sizes below 1
	DefaultPageSize int `yaml:"default_page_size" json:"default_page_size" mapstructure:"default_page_size"`
	// MaxPageSize caps page sizes
	MaxPageSize int `yaml:"max_page_size" json:"max_page_size" mapstructure:"max_page_size"`
}

// PoolConfig is applied to the *sql.DB connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// TimeoutConfig contains timeout settings.
type TimeoutConfig struct {
	// Connection bounds the initial ping
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Query bounds each data source call (0 = no timeout)
	Query time.Duration `yaml:"query" json:"query" mapstructure:"query"`
}

// CacheConfig controls the structure and entity-list caches.
type CacheConfig struct {
	// StructureTTL expires cached entity structures (0 = never)
	StructureTTL time.Duration `yaml:"structure_ttl" json:"structure_ttl" mapstructure:"structure_ttl"`
	// EntityListTTL expires the cached entity name list
	EntityListTTL time.Duration `yaml:"entity_list_ttl" json:"entity_list_ttl" mapstructure:"entity_list_ttl"`
	// EntityListSize is the number of schemas whose entity lists are kept
	EntityListSize int `yaml:"entity_list_size" json:"entity_list_size" mapstructure:"entity_list_size"`
}

// ReliabilityConfig contains rate limiting settings.
type ReliabilityConfig struct {
	// RateLimitPerSec limits queries per second (0 = unlimited)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	// Burst is the limiter bucket size
	Burst int `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// ObservabilityConfig toggles metrics and tracing.
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	EnableTracing bool `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

const (
	DefaultParamPrefix = "@"
	DefaultJoinHint    = "AND"
	DefaultPageSize    = 50
	DefaultMaxPageSize = 2000
)

// NewDataSourceConfig creates a DataSourceConfig with defaults applied.
//
//	cfg := config.NewDataSourceConfig("sales", "postgres")
//	cfg.DSN = "postgres://localhost/sales"
func NewDataSourceConfig(name, dialect string) *DataSourceConfig {
	cfg := &DataSourceConfig{Name: name, Dialect: dialect}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults. Explicit values are kept.
func (c *DataSourceConfig) ApplyDefaults() {
	if c.ParamPrefix == "" {
		c.ParamPrefix = DefaultParamPrefix
	}
	if c.JoinHint == "" {
		c.JoinHint = DefaultJoinHint
	}
	if c.Paging.DefaultPageSize <= 0 {
		c.Paging.DefaultPageSize = DefaultPageSize
	}
	if c.Paging.MaxPageSize <= 0 {
		c.Paging.MaxPageSize = DefaultMaxPageSize
	}
	if c.Pool.MaxOpenConns == 0 {
		c.Pool.MaxOpenConns = 10
	}
	if c.Pool.MaxIdleConns == 0 {
		c.Pool.MaxIdleConns = 5
	}
	if c.Pool.ConnMaxLifetime == 0 {
		c.Pool.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Timeouts.Connection == 0 {
		c.Timeouts.Connection = 10 * time.Second
	}
	if c.Cache.EntityListTTL == 0 {
		c.Cache.EntityListTTL = 5 * time.Minute
	}
	if c.Cache.EntityListSize == 0 {
		c.Cache.EntityListSize = 16
	}
	if c.Reliability.RateLimitPerSec > 0 && c.Reliability.Burst == 0 {
		c.Reliability.Burst = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
}

// Validate checks required fields and value ranges.
func (c *DataSourceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Dialect == "" {
		return fmt.Errorf("dialect is required")
	}
	if len(c.ParamPrefix) != 1 || !strings.ContainsAny(c.ParamPrefix, "@:$?") {
		return fmt.Errorf("param_prefix must be one of @ : $ ?, got %q", c.ParamPrefix)
	}
	switch strings.ToUpper(c.JoinHint) {
	case "AND", "OR":
	default:
		return fmt.Errorf("join_hint must be AND or OR, got %q", c.JoinHint)
	}
	if c.Paging.DefaultPageSize <= 0 {
		return fmt.Errorf("default_page_size must be positive")
	}
	if c.Paging.MaxPageSize < c.Paging.DefaultPageSize {
		return fmt.Errorf("max_page_size must be at least default_page_size")
	}
	if c.Pool.MaxOpenConns < 0 || c.Pool.MaxIdleConns < 0 {
		return fmt.Errorf("pool sizes cannot be negative")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// ClampPage normalizes page coordinates against the paging bounds.
func (p *PagingConfig) ClampPage(pageNumber, pageSize int) (int, int) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = p.DefaultPageSize
	}
	if p.MaxPageSize > 0 && pageSize > p.MaxPageSize {
		pageSize = p.MaxPageSize
	}
	return pageNumber, pageSize
}
