// Package paging runs a filtered query one page at a time, returning the page
// together with the size of the whole filtered set.
//
// Execute derives two statements from the caller's base query: a COUNT over
// the filtered rows and the dialect-specific page of them. Both are bound
// with the same parameters and run on separate commands, count first.
//
// Failures never panic out of Execute. They are logged, recorded on the
// shared errors.Info and returned alongside a well-formed, possibly empty,
// result:
//
//	exec := paging.New(info)
//	res, err := exec.Execute(ctx, factory, paging.Request{
//		BaseQuery:  "SELECT * FROM orders",
//		Filters:    []filter.Filter{{FieldName: "status", Operator: "=", FilterValue: "shipped"}},
//		Dialect:    dialect.Postgres,
//		PageNumber: 2,
//		PageSize:   50,
//	})
package paging

import (
	"context"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
	"github.com/thetechidea/beepdatasources/pkg/models"
	"github.com/thetechidea/beepdatasources/pkg/observability"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/filter"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/querybuilder"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/stream"
)

// Request describes one page of a filtered query.
type Request struct {
	BaseQuery  string
	Filters    []filter.Filter
	Dialect    dialect.Dialect
	PageNumber int
	PageSize   int
	// Sanitize derives parameter names from field names. Nil uses
	// filter.DefaultSanitizer.
	Sanitize filter.Sanitizer
}

// Executor runs paged queries. It holds no per-call state and may be shared
// by concurrent callers.
type Executor struct {
	info     *errors.Info
	build    querybuilder.FilterBuilder
	paginate dialect.Paginator
	sink     logger.Sink
	prefix   string
	join     querybuilder.JoinHint
	log      *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithFilterBuilder replaces querybuilder.ApplyFilters.
func WithFilterBuilder(b querybuilder.FilterBuilder) Option {
	return func(e *Executor) { e.build = b }
}

// WithPaginator replaces dialect.Paginate.
func WithPaginator(p dialect.Paginator) Option {
	return func(e *Executor) { e.paginate = p }
}

// WithSink adds a diagnostic sink written on failure.
func WithSink(s logger.Sink) Option {
	return func(e *Executor) { e.sink = s }
}

// WithParamPrefix sets the symbol that marks parameters in generated SQL.
func WithParamPrefix(prefix string) Option {
	return func(e *Executor) { e.prefix = prefix }
}

// WithJoinHint sets how several criteria are combined.
func WithJoinHint(j querybuilder.JoinHint) Option {
	return func(e *Executor) { e.join = j }
}

// WithLogger sets the base logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New creates an Executor reporting failures to info. A nil info gets a
// private one, available through Info.
func New(info *errors.Info, opts ...Option) *Executor {
	if info == nil {
		info = errors.NewInfo()
	}
	e := &Executor{
		info:     info,
		build:    querybuilder.ApplyFilters,
		paginate: dialect.Paginate,
		prefix:   "@",
		join:     querybuilder.And,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get()
	}
	e.log = e.log.With(zap.String("component", "paging"))
	return e
}

// Info returns the shared error state the executor reports to.
func (e *Executor) Info() *errors.Info {
	return e.info
}

// Execute returns the requested page and the total number of filtered rows.
//
// The result is never nil. A factory that yields no command leaves the
// corresponding part of the result empty without error. Any other failure is
// logged, marks the shared Info as failed and is returned with whatever was
// read before it.
func (e *Executor) Execute(ctx context.Context, factory command.Factory, req Request) (res *models.PagedResult, err error) {
	pageNumber := max(req.PageNumber, 1)
	res = models.NewPagedResult(pageNumber, req.PageSize)

	ctx, span := observability.StartSpan(ctx, "paging.Execute",
		observability.AttrDialect.String(req.Dialect.String()),
		observability.AttrPage.Int(pageNumber),
		observability.AttrPageSize.Int(req.PageSize),
	)
	log := logger.FromContext(ctx, e.log).With(zap.Stringer("dialect", req.Dialect))

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "paged query panicked: %v", r)
		}
		if err != nil {
			e.fail(log, err)
		}
		span.SetAttributes(
			observability.AttrTotal.Int64(res.TotalRecords),
			observability.AttrRows.Int(len(res.Rows)),
		)
		observability.EndSpan(span, err)
	}()

	if req.PageSize < 1 {
		return res, errors.Newf(errors.ErrorTypeValidation, "page size must be at least 1, got %d", req.PageSize)
	}

	filtered, err := e.build(req.BaseQuery, req.Filters, e.join, e.prefix, req.Sanitize)
	if err != nil {
		return res, err
	}
	countSQL := querybuilder.CountQuery(req.BaseQuery, filtered)
	pageSQL, err := e.paginate(filtered, req.Dialect, pageNumber, req.PageSize)
	if err != nil {
		return res, err
	}
	log.Debug("derived paged query",
		zap.String("count_sql", countSQL),
		zap.String("page_sql", pageSQL),
		zap.Int("page", pageNumber),
		zap.Int("page_size", req.PageSize))

	total, err := e.count(ctx, log, factory, countSQL, req)
	if err != nil {
		return res, err
	}
	res.TotalRecords = total

	if err := ctx.Err(); err != nil {
		return res, errors.WrapContext(err, errors.ErrorTypeTimeout, "paged query cancelled after count")
	}

	rows, err := e.page(ctx, log, factory, pageSQL, req)
	res.Rows = append(res.Rows, rows...)
	if err != nil {
		return res, err
	}

	log.Debug("paged query complete",
		zap.Int64("total_records", res.TotalRecords),
		zap.Int("rows", len(res.Rows)))
	return res, nil
}

// count runs the count statement and returns its scalar as an integer.
func (e *Executor) count(ctx context.Context, log *zap.Logger, factory command.Factory, text string, req Request) (total int64, err error) {
	ctx, span := observability.StartSpan(ctx, "paging.count")
	timer := metrics.NewTimer()
	cmd := open(ctx, factory)
	if cmd == nil {
		log.Warn("no command available for count query")
		metrics.QueriesTotal.WithLabelValues(req.Dialect.String(), metrics.PhaseCount, metrics.StatusUnavailable).Inc()
		observability.EndSpan(span, nil)
		return 0, nil
	}
	defer func() {
		closeCommand(log, cmd)
		metrics.ObserveQuery(req.Dialect.String(), metrics.PhaseCount, timer.Stop(), err)
		observability.EndSpan(span, err)
	}()

	cmd.SetText(text)
	filter.Bind(cmd, req.Filters, req.Sanitize)
	v, err := cmd.ExecuteScalar(ctx)
	if err != nil {
		return 0, err
	}
	return ParseCount(v)
}

// page runs the page statement and reads every row it returns.
func (e *Executor) page(ctx context.Context, log *zap.Logger, factory command.Factory, text string, req Request) (rows []models.Record, err error) {
	ctx, span := observability.StartSpan(ctx, "paging.page")
	timer := metrics.NewTimer()
	cmd := open(ctx, factory)
	if cmd == nil {
		log.Warn("no command available for page query")
		metrics.QueriesTotal.WithLabelValues(req.Dialect.String(), metrics.PhasePage, metrics.StatusUnavailable).Inc()
		observability.EndSpan(span, nil)
		return nil, nil
	}
	defer func() {
		closeCommand(log, cmd)
		metrics.ObserveQuery(req.Dialect.String(), metrics.PhasePage, timer.Stop(), err)
		observability.EndSpan(span, err)
	}()

	cmd.SetText(text)
	filter.Bind(cmd, req.Filters, req.Sanitize)
	cursor, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, err
	}
	return stream.Collect(stream.Rows(cursor, stream.WithSource("paging")), 0)
}

func open(ctx context.Context, factory command.Factory) command.Command {
	if factory == nil {
		return nil
	}
	return factory(ctx)
}

func closeCommand(log *zap.Logger, cmd command.Command) {
	if err := cmd.Close(); err != nil {
		log.Warn("failed to close command", zap.Error(err))
	}
}

func (e *Executor) fail(log *zap.Logger, err error) {
	e.info.Fail(err)
	log.Error("paged query failed", zap.Error(err))
	if e.sink != nil {
		e.sink.WriteLog(logger.SeverityError, err.Error(), time.Now(), failureCode(err), "paging.Execute", errors.FlagFailed)
	}
}

var failureCodes = map[errors.ErrorType]int{
	errors.ErrorTypeValidation: 400,
	errors.ErrorTypeNotFound:   404,
	errors.ErrorTypeTimeout:    408,
	errors.ErrorTypeConnection: 503,
}

func failureCode(err error) int {
	var e *errors.Error
	if errors.As(err, &e) {
		if code, ok := failureCodes[e.Type]; ok {
			return code
		}
	}
	return 500
}

// ParseCount converts a COUNT scalar to int64. NULL counts as zero and byte
// slices are read as decimal text.
func ParseCount(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case []byte:
		v = string(t)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeData, "count result is not an integer").
			WithDetail("value", v)
	}
	return n, nil
}
