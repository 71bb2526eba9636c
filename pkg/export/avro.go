package export

import (
	"fmt"
	"io"
	"iter"
	"regexp"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/spf13/cast"

	"github.com/thetechidea/beepdatasources/pkg/compression"
	"github.com/thetechidea/beepdatasources/pkg/errors"
	jsonpool "github.com/thetechidea/beepdatasources/pkg/json"
	"github.com/thetechidea/beepdatasources/pkg/models"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dbtype"
)

// avro primitive or logical type of a column
type avroType string

const (
	avroLong      avroType = "long"
	avroDouble    avroType = "double"
	avroBoolean   avroType = "boolean"
	avroBytes     avroType = "bytes"
	avroString    avroType = "string"
	avroTimestamp avroType = "long.timestamp-micros"
)

type avroColumn struct {
	source string
	name   string
	typ    avroType
}

var invalidAvroName = regexp.MustCompile(`[^A-Za-z0-9_]`)

func avroName(s string) string {
	n := invalidAvroName.ReplaceAllString(s, "_")
	if n == "" || (n[0] >= '0' && n[0] <= '9') {
		n = "_" + n
	}
	return n
}

func typeForField(fieldType string) avroType {
	t := dbtype.ToDbType(fieldType)
	switch {
	case dbtype.IsInteger(t):
		return avroLong
	case dbtype.IsNumeric(t):
		return avroDouble
	case t == dbtype.Boolean:
		return avroBoolean
	case t == dbtype.Binary:
		return avroBytes
	case t == dbtype.DateTime || t == dbtype.DateTime2 || t == dbtype.DateTimeOffset || t == dbtype.Date:
		return avroTimestamp
	default:
		return avroString
	}
}

func typeForValue(v interface{}) avroType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return avroLong
	case float32, float64:
		return avroDouble
	case bool:
		return avroBoolean
	case time.Time:
		return avroTimestamp
	default:
		return avroString
	}
}

func columnsFromStructure(s *models.EntityStructure) []avroColumn {
	cols := make([]avroColumn, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, avroColumn{source: f.FieldName, name: avroName(f.FieldName), typ: typeForField(f.FieldType)})
	}
	return cols
}

func columnsFromRecord(r models.Record) []avroColumn {
	cols := make([]avroColumn, 0, r.Len())
	for i, f := range r.Fields() {
		cols = append(cols, avroColumn{source: f, name: avroName(f), typ: typeForValue(r.Values()[i])})
	}
	return cols
}

// avroSchema renders a record schema whose fields are all nullable.
func avroSchema(name string, cols []avroColumn) (string, error) {
	fields := make([]map[string]interface{}, 0, len(cols))
	for _, c := range cols {
		var typ interface{} = string(c.typ)
		if c.typ == avroTimestamp {
			typ = map[string]string{"type": "long", "logicalType": "timestamp-micros"}
		}
		fields = append(fields, map[string]interface{}{
			"name":    c.name,
			"type":    []interface{}{"null", typ},
			"default": nil,
		})
	}
	schema, err := jsonpool.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   avroName(name),
		"fields": fields,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to render avro schema")
	}
	return string(schema), nil
}

func avroValue(c avroColumn, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	var (
		out interface{}
		err error
	)
	switch c.typ {
	case avroLong:
		out, err = cast.ToInt64E(v)
	case avroDouble:
		out, err = cast.ToFloat64E(v)
	case avroBoolean:
		out, err = cast.ToBoolE(v)
	case avroTimestamp:
		out, err = cast.ToTimeE(v)
	case avroBytes:
		switch b := v.(type) {
		case []byte:
			out = b
		default:
			out = []byte(cast.ToString(v))
		}
	default:
		if t, ok := v.(time.Time); ok {
			out = t.Format(time.RFC3339Nano)
		} else {
			out, err = cast.ToStringE(v)
			if err != nil {
				out, err = fmt.Sprint(v), nil
			}
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "value does not match avro type").
			WithDetail("field", c.source).
			WithDetail("type", string(c.typ))
	}
	return goavro.Union(string(c.typ), out), nil
}

func avroCompression(a compression.Algorithm) (string, error) {
	switch a {
	case compression.None, "":
		return goavro.CompressionNullLabel, nil
	case compression.Deflate:
		return goavro.CompressionDeflateLabel, nil
	case compression.Snappy:
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "avro export supports none, deflate or snappy compression, got %s", a)
	}
}

type avroWriter struct {
	w         io.Writer
	opts      Options
	codecName string
	cols      []avroColumn
	ocf       *goavro.OCFWriter
	batch     []interface{}
	written   int64
}

func (aw *avroWriter) open(cols []avroColumn) error {
	name := aw.opts.Name
	if name == "" {
		name = "record"
	}
	schema, err := avroSchema(name, cols)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               aw.w,
		Codec:           codec,
		CompressionName: aw.codecName,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro writer")
	}
	aw.cols = cols
	aw.ocf = ocf
	return nil
}

func (aw *avroWriter) add(rec models.Record) error {
	native := make(map[string]interface{}, len(aw.cols))
	for _, c := range aw.cols {
		v, err := avroValue(c, rec.Value(c.source))
		if err != nil {
			return err
		}
		native[c.name] = v
	}
	aw.batch = append(aw.batch, native)
	if len(aw.batch) >= aw.opts.BatchSize {
		return aw.flush()
	}
	return nil
}

func (aw *avroWriter) flush() error {
	if len(aw.batch) == 0 {
		return nil
	}
	if err := aw.ocf.Append(aw.batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write avro block")
	}
	aw.written += int64(len(aw.batch))
	aw.batch = aw.batch[:0]
	return nil
}

func writeAvro(w io.Writer, seq iter.Seq2[models.Record, error], opts Options) (int64, error) {
	codecName, err := avroCompression(opts.Compression)
	if err != nil {
		return 0, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	aw := &avroWriter{w: w, opts: opts, codecName: codecName}
	if opts.Structure != nil {
		if err := aw.open(columnsFromStructure(opts.Structure)); err != nil {
			return 0, err
		}
	}

	for rec, serr := range seq {
		if serr != nil {
			if aw.ocf != nil {
				_ = aw.flush()
			}
			return aw.written, serr
		}
		if aw.ocf == nil {
			if err := aw.open(columnsFromRecord(rec)); err != nil {
				return 0, err
			}
		}
		if err := aw.add(rec); err != nil {
			return aw.written, err
		}
	}

	if aw.ocf == nil {
		// empty result without a structure: a header-only file
		if err := aw.open(nil); err != nil {
			return 0, err
		}
	}
	if err := aw.flush(); err != nil {
		return aw.written, err
	}
	return aw.written, nil
}
