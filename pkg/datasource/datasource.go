// Package datasource exposes a relational database as a data source:
// entity discovery, cached entity structures, filtered streams and pages.
//
// # Usage
//
//	cfg := config.NewDataSourceConfig("sales", "postgres")
//	cfg.DSN = "postgres://localhost/sales"
//	ds, err := datasource.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer ds.Close()
//
//	page, err := ds.GetEntityPaged(ctx, "orders", filters, 1, 100)
package datasource

import (
	"context"
	"database/sql"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thetechidea/beepdatasources/pkg/config"
	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
	"github.com/thetechidea/beepdatasources/pkg/models"
	"github.com/thetechidea/beepdatasources/pkg/observability"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/cache"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/paging"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/querybuilder"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/stream"
)

// RDBMSDataSource is a data source backed by a database/sql pool. It is safe
// for concurrent use.
type RDBMSDataSource struct {
	cfg     *config.DataSourceConfig
	dialect dialect.Dialect
	db      *sql.DB
	owned   bool

	info       *errors.Info
	executor   *paging.Executor
	structures *cache.Cache[*models.EntityStructure]
	entities   *expirable.LRU[string, []string]
	limiter    *rate.Limiter
	logger     *zap.Logger

	closeOnce sync.Once
}

// Open resolves the driver for cfg.Dialect, opens and pings the pool.
func Open(ctx context.Context, cfg *config.DataSourceConfig) (*RDBMSDataSource, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "data source config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid data source config")
	}
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "dsn is required")
	}

	d, ok := dialect.Parse(cfg.Dialect)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown dialect %q", cfg.Dialect)
	}
	driverName := cfg.Driver
	if driverName == "" {
		drv, err := Lookup(d)
		if err != nil {
			return nil, err
		}
		driverName = drv.Name
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database").
			WithDetail("driver", driverName)
	}
	db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Connection)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.WrapContext(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("driver", driverName)
	}

	ds, err := New(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	ds.owned = true
	ds.logger.Info("data source opened",
		zap.String("driver", driverName),
		zap.Int("max_open_conns", cfg.Pool.MaxOpenConns))
	return ds, nil
}

// New wraps an existing pool. Close does not close db.
func New(db *sql.DB, cfg *config.DataSourceConfig) (*RDBMSDataSource, error) {
	if db == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "database handle is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "data source config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid data source config")
	}
	d, ok := dialect.Parse(cfg.Dialect)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown dialect %q", cfg.Dialect)
	}

	log := logger.Get().With(
		zap.String("component", "datasource"),
		zap.String("datasource", cfg.Name),
		zap.String("dialect", d.String()))

	ds := &RDBMSDataSource{
		cfg:     cfg,
		dialect: d,
		db:      db,
		info:    errors.NewInfo(),
		logger:  log,
	}
	ds.executor = paging.New(ds.info,
		paging.WithSink(logger.NewZapSink(log)),
		paging.WithParamPrefix(cfg.ParamPrefix),
		paging.WithJoinHint(querybuilder.ParseJoinHint(cfg.JoinHint)),
		paging.WithLogger(log))
	ds.structures = cache.New[*models.EntityStructure](ds.loadStructure, cfg.Cache.StructureTTL).WithName("structure")
	ds.entities = expirable.NewLRU[string, []string](cfg.Cache.EntityListSize, nil, cfg.Cache.EntityListTTL)
	if cfg.Reliability.IsRateLimited() {
		ds.limiter = rate.NewLimiter(rate.Limit(cfg.Reliability.RateLimitPerSec), cfg.Reliability.Burst)
	}
	return ds, nil
}

// Name returns the configured data source name
func (ds *RDBMSDataSource) Name() string { return ds.cfg.Name }

// Dialect returns the SQL dialect
func (ds *RDBMSDataSource) Dialect() dialect.Dialect { return ds.dialect }

// DB returns the underlying pool
func (ds *RDBMSDataSource) DB() *sql.DB { return ds.db }

// ErrorInfo returns the status of the most recent failed operation.
func (ds *RDBMSDataSource) ErrorInfo() *errors.Info { return ds.info }

// CommandFactory returns the factory data source operations run on: one
// pooled connection per command, tracked by the open commands gauge.
func (ds *RDBMSDataSource) CommandFactory() command.Factory {
	open := command.NewFactory(ds.db, ds.dialect, ds.cfg.ParamPrefix)
	gauge := metrics.OpenCommands.WithLabelValues(ds.cfg.Name)
	return func(ctx context.Context) command.Command {
		cmd := open(ctx)
		if cmd == nil {
			return nil
		}
		gauge.Inc()
		return &trackedCommand{Command: cmd, release: gauge.Dec}
	}
}

type trackedCommand struct {
	command.Command
	once    sync.Once
	release func()
}

func (c *trackedCommand) Close() error {
	err := c.Command.Close()
	c.once.Do(c.release)
	return err
}

// begin tags ctx with a request id and the data source and entity names,
// applies the query timeout and waits for the rate limiter.
func (ds *RDBMSDataSource) begin(ctx context.Context, entity string) (context.Context, context.CancelFunc, *zap.Logger, error) {
	requestID, ok := ctx.Value(logger.RequestIDKey).(string)
	if !ok {
		requestID = uuid.NewString()
		ctx = context.WithValue(ctx, logger.RequestIDKey, requestID)
	}
	ctx = context.WithValue(ctx, logger.DataSourceKey, ds.cfg.Name)
	log := ds.logger.With(zap.String("request_id", requestID))
	if entity != "" {
		ctx = context.WithValue(ctx, logger.EntityKey, entity)
		log = log.With(zap.String("entity", entity))
	}

	cancel := context.CancelFunc(func() {})
	if ds.cfg.Timeouts.Query > 0 {
		ctx, cancel = context.WithTimeout(ctx, ds.cfg.Timeouts.Query)
	}

	if ds.limiter != nil {
		if err := ds.limiter.Wait(ctx); err != nil {
			cancel()
			return ctx, cancel, log, errors.WrapContext(err, errors.ErrorTypeTimeout, "rate limiter wait failed")
		}
	}
	return ctx, cancel, log, nil
}

// fail records err on the error info.
func (ds *RDBMSDataSource) fail(log *zap.Logger, op string, err error) {
	ds.info.Fail(err)
	log.Error(op+" failed", zap.String("operation", op), zap.Error(err))
}

// GetEntitiesNames lists the tables and views of the configured schema.
// The list is cached for cfg.Cache.EntityListTTL.
func (ds *RDBMSDataSource) GetEntitiesNames(ctx context.Context) ([]string, error) {
	ctx, cancel, log, err := ds.begin(ctx, "")
	defer cancel()
	if err != nil {
		ds.fail(log, "GetEntitiesNames", err)
		return nil, err
	}
	names, err := ds.entityNames(ctx, false)
	if err != nil {
		ds.fail(log, "GetEntitiesNames", err)
		return nil, err
	}
	return names, nil
}

func (ds *RDBMSDataSource) schema() string {
	if ds.cfg.Schema != "" {
		return ds.cfg.Schema
	}
	return ds.dialect.DefaultSchema()
}

func (ds *RDBMSDataSource) entityNames(ctx context.Context, refresh bool) ([]string, error) {
	key := ds.schema()
	if !refresh {
		if names, ok := ds.entities.Get(key); ok {
			metrics.CacheRequests.WithLabelValues("entities", metrics.CacheHit).Inc()
			return names, nil
		}
		metrics.CacheRequests.WithLabelValues("entities", metrics.CacheMiss).Inc()
	} else {
		metrics.CacheRequests.WithLabelValues("entities", metrics.CacheRefresh).Inc()
	}

	names, err := ds.queryEntityNames(ctx, key)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("entities", metrics.CacheError).Inc()
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list entities")
	}
	ds.entities.Add(key, names)
	return names, nil
}

// GetEntityStructure returns the columns of a table or view. Structures are
// cached per name; refresh reloads from the catalog and replaces the entry.
func (ds *RDBMSDataSource) GetEntityStructure(ctx context.Context, name string, refresh bool) (*models.EntityStructure, error) {
	ctx, cancel, log, err := ds.begin(ctx, name)
	defer cancel()
	if err == nil {
		err = ValidateEntityName(name)
	}
	if err != nil {
		ds.fail(log, "GetEntityStructure", err)
		return nil, err
	}

	s, err := ds.structures.Get(ctx, name, refresh)
	if err != nil {
		ds.fail(log, "GetEntityStructure", err)
		return nil, err
	}
	return s, nil
}

func (ds *RDBMSDataSource) loadStructure(ctx context.Context, name string, refresh bool) (*models.EntityStructure, error) {
	ctx, span := observability.StartSpan(ctx, "datasource.loadStructure",
		observability.AttrDataSource.String(ds.cfg.Name),
		observability.AttrEntity.String(name))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	schema, table := splitEntityName(name)
	if schema == "" {
		var names []string
		names, err = ds.entityNames(ctx, refresh)
		if err != nil {
			return nil, err
		}
		resolved := ""
		for _, n := range names {
			if strings.EqualFold(n, table) {
				resolved = n
				break
			}
		}
		if resolved == "" {
			err = errors.Newf(errors.ErrorTypeNotFound, "entity %s not found", name)
			return nil, err
		}
		table = resolved
		if ds.dialect != dialect.SQLite {
			schema = ds.schema()
		}
	}

	var fields []models.EntityField
	fields, err = ds.columns(ctx, schema, table)
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeQuery, "failed to read entity columns").WithDetail("entity", name)
		return nil, err
	}
	if len(fields) == 0 {
		fields, err = ds.probe(ctx, probeTableQuery(ds.qualify(schema, table)))
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeNotFound, "entity has no readable columns").WithDetail("entity", name)
			return nil, err
		}
	}

	s := newStructure(name, ds.qualify(schema, table), fields)
	ds.logger.Debug("entity structure loaded",
		zap.String("entity", name),
		zap.String("datasource_entity", s.DatasourceEntityName),
		zap.Int("fields", len(fields)))
	return s, nil
}

func (ds *RDBMSDataSource) qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// entityQuery returns the base query of an entity and the filters with their
// value types defaulted from the entity's fields.
func (ds *RDBMSDataSource) entityQuery(ctx context.Context, name string, filters []filter.Filter) (string, []filter.Filter, error) {
	if err := ValidateEntityName(name); err != nil {
		return "", nil, err
	}
	s, err := ds.structures.Get(ctx, name, false)
	if err != nil {
		return "", nil, err
	}
	typed := make([]filter.Filter, len(filters))
	for i, f := range filters {
		if f.ValueType == "" {
			if field, ok := s.Field(strings.TrimSpace(f.FieldName)); ok {
				f.ValueType = field.FieldType
			}
		}
		typed[i] = f
	}
	return "SELECT * FROM " + ds.dialect.QuoteIdent(s.DatasourceEntityName), typed, nil
}

// GetEntity streams the rows of an entity that match filters. The query runs
// when iteration starts; the sequence can be ranged over once.
func (ds *RDBMSDataSource) GetEntity(ctx context.Context, name string, filters []filter.Filter) iter.Seq2[models.Record, error] {
	var used atomic.Bool
	return func(yield func(models.Record, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(models.Record{}, stream.ErrConsumed)
			return
		}
		ctx, cancel, log, err := ds.begin(ctx, name)
		defer cancel()
		if err != nil {
			ds.fail(log, "GetEntity", err)
			yield(models.Record{}, err)
			return
		}
		ctx, span := observability.StartSpan(ctx, "datasource.GetEntity",
			observability.AttrDataSource.String(ds.cfg.Name),
			observability.AttrEntity.String(name),
			observability.AttrDialect.String(ds.dialect.String()))
		var rows int64
		defer func() {
			span.SetAttributes(observability.AttrRows.Int64(rows))
			observability.EndSpan(span, err)
		}()

		base, typed, err := ds.entityQuery(ctx, name, filters)
		if err != nil {
			ds.fail(log, "GetEntity", err)
			yield(models.Record{}, err)
			return
		}
		for rec, serr := range ds.query(ctx, base, typed) {
			if serr != nil {
				err = serr
				ds.fail(log, "GetEntity", err)
				yield(models.Record{}, err)
				return
			}
			rows++
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// query filters base and streams its rows over one command.
func (ds *RDBMSDataSource) query(ctx context.Context, base string, filters []filter.Filter) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		text, err := querybuilder.ApplyFilters(base, filters,
			querybuilder.ParseJoinHint(ds.cfg.JoinHint), ds.cfg.ParamPrefix, nil)
		if err != nil {
			yield(models.Record{}, err)
			return
		}
		cmd := ds.CommandFactory()(ctx)
		if cmd == nil {
			metrics.QueriesTotal.WithLabelValues(ds.dialect.String(), metrics.PhaseStream, metrics.StatusUnavailable).Inc()
			ds.logger.Warn("no command available, returning empty stream")
			return
		}
		defer cmd.Close()
		cmd.SetText(text)
		filter.Bind(cmd, filters, nil)

		timer := metrics.NewTimer()
		rows, err := cmd.ExecuteReader(ctx)
		metrics.ObserveQuery(ds.dialect.String(), metrics.PhaseStream, timer.Stop(), err)
		if err != nil {
			yield(models.Record{}, err)
			return
		}
		for rec, err := range stream.Rows(rows, stream.WithSource(ds.cfg.Name)) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// GetEntityPaged returns one page of an entity's filtered rows with the
// total row count. Page coordinates are clamped to the paging config.
func (ds *RDBMSDataSource) GetEntityPaged(ctx context.Context, name string, filters []filter.Filter, pageNumber, pageSize int) (*models.PagedResult, error) {
	ctx, cancel, log, err := ds.begin(ctx, name)
	defer cancel()
	if err != nil {
		ds.fail(log, "GetEntityPaged", err)
		return nil, err
	}
	base, typed, err := ds.entityQuery(ctx, name, filters)
	if err != nil {
		ds.fail(log, "GetEntityPaged", err)
		return nil, err
	}
	return ds.executePaged(ctx, base, typed, pageNumber, pageSize)
}

// QueryPaged pages an arbitrary SELECT. Filter value types are taken as given.
func (ds *RDBMSDataSource) QueryPaged(ctx context.Context, baseQuery string, filters []filter.Filter, pageNumber, pageSize int) (*models.PagedResult, error) {
	ctx, cancel, log, err := ds.begin(ctx, "")
	defer cancel()
	if err == nil && strings.TrimSpace(baseQuery) == "" {
		err = errors.New(errors.ErrorTypeValidation, "base query is required")
	}
	if err != nil {
		ds.fail(log, "QueryPaged", err)
		return nil, err
	}
	return ds.executePaged(ctx, baseQuery, filters, pageNumber, pageSize)
}

func (ds *RDBMSDataSource) executePaged(ctx context.Context, base string, filters []filter.Filter, pageNumber, pageSize int) (*models.PagedResult, error) {
	pageNumber, pageSize = ds.cfg.Paging.ClampPage(pageNumber, pageSize)
	return ds.executor.Execute(ctx, ds.CommandFactory(), paging.Request{
		BaseQuery:  base,
		Filters:    filters,
		Dialect:    ds.dialect,
		PageNumber: pageNumber,
		PageSize:   pageSize,
	})
}

// RunQuery executes text and returns at most limit rows (limit < 1 reads all).
func (ds *RDBMSDataSource) RunQuery(ctx context.Context, text string, limit int) ([]models.Record, error) {
	ctx, cancel, log, err := ds.begin(ctx, "")
	defer cancel()
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New(errors.ErrorTypeValidation, "query is required")
	}
	if err != nil {
		ds.fail(log, "RunQuery", err)
		return nil, err
	}
	records, err := stream.Collect(ds.query(ctx, text, nil), limit)
	if err != nil {
		ds.fail(log, "RunQuery", err)
		return nil, err
	}
	return records, nil
}

// GetQueryStructure describes the result columns of an arbitrary SELECT
// without reading any rows.
func (ds *RDBMSDataSource) GetQueryStructure(ctx context.Context, name, query string) (*models.EntityStructure, error) {
	ctx, cancel, log, err := ds.begin(ctx, name)
	defer cancel()
	if err != nil {
		ds.fail(log, "GetQueryStructure", err)
		return nil, err
	}
	fields, err := ds.probe(ctx, probeQuery(query))
	if err != nil {
		ds.fail(log, "GetQueryStructure", err)
		return nil, err
	}
	return newStructure(name, "", fields), nil
}

// Warmup loads the structures of names into the cache, at most parallelism
// at a time. An empty names list warms every entity.
func (ds *RDBMSDataSource) Warmup(ctx context.Context, names []string, parallelism int) error {
	if len(names) == 0 {
		all, err := ds.GetEntitiesNames(ctx)
		if err != nil {
			return err
		}
		names = all
	}
	if parallelism < 1 {
		parallelism = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, name := range names {
		g.Go(func() error {
			_, err := ds.GetEntityStructure(gctx, name, false)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ds.logger.Info("structure cache warmed", zap.Int("entities", len(names)))
	return nil
}

// InvalidateCaches drops every cached structure and entity list.
func (ds *RDBMSDataSource) InvalidateCaches() {
	ds.structures.Clear()
	ds.entities.Purge()
}

// Ping verifies the connection.
func (ds *RDBMSDataSource) Ping(ctx context.Context) error {
	if err := ds.db.PingContext(ctx); err != nil {
		return errors.WrapContext(err, errors.ErrorTypeConnection, "ping failed")
	}
	return nil
}

// Close releases the pool when Open created it.
func (ds *RDBMSDataSource) Close() error {
	var err error
	ds.closeOnce.Do(func() {
		if ds.owned {
			if cerr := ds.db.Close(); cerr != nil {
				err = errors.Wrap(cerr, errors.ErrorTypeConnection, "failed to close database")
			}
		}
		ds.logger.Info("data source closed")
	})
	return err
}
