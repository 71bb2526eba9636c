// Package json provides JSON serialization of records with pooled buffers
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/models"
)

// Format selects how a sequence of records is laid out.
type Format string

const (
	// FormatArray writes one JSON array.
	FormatArray Format = "array"
	// FormatLines writes one JSON object per line.
	FormatLines Format = "lines"
)

// ParseFormat accepts "array", "json", "lines", "jsonl" and "ndjson".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "array", "json":
		return FormatArray, nil
	case "lines", "jsonl", "ndjson":
		return FormatLines, nil
	default:
		return "", errors.Newf(errors.ErrorTypeValidation, "unknown json format %q", s)
	}
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// StreamingEncoder writes records one at a time.
type StreamingEncoder struct {
	writer  io.Writer
	format  Format
	indent  string
	count   int64
	started bool
	closed  bool
}

// NewStreamingEncoder creates a streaming encoder writing format to w.
func NewStreamingEncoder(w io.Writer, format Format) *StreamingEncoder {
	return &StreamingEncoder{writer: w, format: format}
}

// SetIndent pretty prints array output. It has no effect on line output.
func (se *StreamingEncoder) SetIndent(indent string) {
	se.indent = indent
}

// Count returns the number of values encoded so far.
func (se *StreamingEncoder) Count() int64 {
	return se.count
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.closed {
		return errors.New(errors.ErrorTypeInternal, "encoder is closed")
	}
	buf := GetBuffer()
	defer PutBuffer(buf)

	if se.format == FormatArray {
		if !se.started {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}
		if se.indent != "" {
			buf.WriteString("\n" + se.indent)
		}
	}
	se.started = true

	var (
		data []byte
		err  error
	)
	if se.indent != "" && se.format == FormatArray {
		data, err = gojson.MarshalIndent(v, se.indent, se.indent)
	} else {
		data, err = gojson.Marshal(v)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode value")
	}
	buf.Write(data)
	if se.format == FormatLines {
		buf.WriteByte('\n')
	}

	if _, err := se.writer.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write json")
	}
	se.count++
	return nil
}

// Close finalizes the encoding. An array with no values is written as [].
func (se *StreamingEncoder) Close() error {
	if se.closed || se.format != FormatArray {
		se.closed = true
		return nil
	}
	se.closed = true

	var tail string
	switch {
	case !se.started:
		tail = "[]"
	case se.indent != "":
		tail = "\n]"
	default:
		tail = "]"
	}
	if _, err := io.WriteString(se.writer, tail); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write json")
	}
	return nil
}

// MarshalRecords marshals records in the given format
func MarshalRecords(records []models.Record, format Format) ([]byte, error) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, format)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
