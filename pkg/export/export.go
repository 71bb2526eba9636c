// Package export writes record sequences to files or streams as JSON lines,
// a JSON array or an Avro object container file.
package export

import (
	"io"
	"iter"
	"strings"

	"github.com/thetechidea/beepdatasources/pkg/compression"
	"github.com/thetechidea/beepdatasources/pkg/errors"
	jsonpool "github.com/thetechidea/beepdatasources/pkg/json"
	"github.com/thetechidea/beepdatasources/pkg/models"
)

// Format is an export file format.
type Format string

const (
	JSONLines Format = "jsonl"
	JSONArray Format = "json"
	Avro      Format = "avro"
)

// ParseFormat accepts jsonl, ndjson, lines, json, array and avro.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jsonl", "ndjson", "lines", "":
		return JSONLines, nil
	case "json", "array":
		return JSONArray, nil
	case "avro":
		return Avro, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "unsupported export format %q", s)
	}
}

// Extension returns the file suffix for f.
func (f Format) Extension() string {
	switch f {
	case JSONArray:
		return ".json"
	case Avro:
		return ".avro"
	default:
		return ".jsonl"
	}
}

// Options configures Write.
type Options struct {
	Format Format
	// Compression wraps JSON output in a compressed stream. For Avro it
	// selects the block codec, which must be none, deflate or snappy.
	Compression compression.Algorithm
	Level       compression.Level
	// Structure types the Avro schema. Without it the schema is inferred
	// from the first record.
	Structure *models.EntityStructure
	// Name is the Avro record name.
	Name string
	// BatchSize is the number of records per Avro block. Defaults to 500.
	BatchSize int
}

// Write drains seq into w and returns the number of records written. w is
// not closed. The first error from seq or from encoding stops the export.
func Write(w io.Writer, seq iter.Seq2[models.Record, error], opts Options) (int64, error) {
	if opts.Format == "" {
		opts.Format = JSONLines
	}
	if opts.Level == 0 {
		opts.Level = compression.Default
	}
	switch opts.Format {
	case JSONLines, JSONArray:
		return writeJSON(w, seq, opts)
	case Avro:
		return writeAvro(w, seq, opts)
	default:
		return 0, errors.Newf(errors.ErrorTypeValidation, "unsupported export format %q", opts.Format)
	}
}

func writeJSON(w io.Writer, seq iter.Seq2[models.Record, error], opts Options) (n int64, err error) {
	cw, err := compression.NewWriter(w, opts.Compression, opts.Level)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to flush compressed output")
		}
	}()

	jf := jsonpool.FormatLines
	if opts.Format == JSONArray {
		jf = jsonpool.FormatArray
	}
	enc := jsonpool.NewStreamingEncoder(cw, jf)
	for rec, serr := range seq {
		if serr != nil {
			return enc.Count(), serr
		}
		if err := enc.Encode(rec); err != nil {
			return enc.Count(), err
		}
	}
	if err := enc.Close(); err != nil {
		return enc.Count(), err
	}
	return enc.Count(), nil
}
