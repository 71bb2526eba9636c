// Package stream turns a forward-only database cursor into a lazy sequence of
// records.
package stream

import (
	"iter"
	"sync/atomic"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
	"github.com/thetechidea/beepdatasources/pkg/models"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/command"
)

// ErrConsumed is yielded when a sequence is ranged over a second time.
var ErrConsumed = errors.New(errors.ErrorTypeData, "row sequence already consumed")

type options struct {
	source string
}

// Option configures Rows.
type Option func(*options)

// WithSource labels the rows-streamed metric with name.
func WithSource(name string) Option {
	return func(o *options) { o.source = name }
}

// Rows returns a single-pass sequence over rows. Each row is read by ordinal
// into a record keyed by column name; NULL becomes nil and []byte becomes
// string. rows is closed when iteration ends for any reason, including an
// early break or a panic in the loop body. Errors are yielded with a zero
// record and end the sequence.
//
// Columns with the same name collapse into one field holding the last value.
func Rows(rows command.Rows, opts ...Option) iter.Seq2[models.Record, error] {
	o := options{source: "query"}
	for _, opt := range opts {
		opt(&o)
	}

	var used atomic.Bool
	return func(yield func(models.Record, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(models.Record{}, ErrConsumed)
			return
		}
		if rows == nil {
			return
		}

		var n int64
		// set only when every row was yielded without error
		drained := false
		defer func() {
			metrics.RowsStreamed.WithLabelValues(o.source).Add(float64(n))
			err := rows.Close()
			if err != nil && drained {
				yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeData, "closing cursor"))
			}
		}()

		cols, err := rows.Columns()
		if err != nil {
			yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeData, "reading columns"))
			return
		}

		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		for rows.Next() {
			for i := range values {
				values[i] = nil
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(models.Record{}, errors.Wrap(err, errors.ErrorTypeData, "scanning row"))
				return
			}
			rec := models.NewRecord(len(cols))
			for i, col := range cols {
				rec.Set(col, normalize(values[i]))
			}
			n++
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Record{}, errors.WrapContext(err, errors.ErrorTypeData, "iterating rows"))
			return
		}
		drained = true
	}
}

func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Collect reads seq into a slice. A positive limit stops after that many
// records. On error the records read so far are returned with it.
func Collect(seq iter.Seq2[models.Record, error], limit int) ([]models.Record, error) {
	out := make([]models.Record, 0)
	if limit > 0 {
		out = make([]models.Record, 0, min(limit, 1024))
	}
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
