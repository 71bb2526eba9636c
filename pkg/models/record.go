// Package models provides the data shapes returned by the data-access core:
// rows as case-insensitive records, paged results and entity structures.
package models

import (
	"bytes"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Record is one row: an ordered field-name to value mapping.
// Lookups ignore case; the original column spelling is kept for output.
// A nil value is the database-null sentinel.
type Record struct {
	fields []string
	values []interface{}
	index  map[string]int
}

// NewRecord creates an empty record with room for n fields.
func NewRecord(n int) Record {
	return Record{
		fields: make([]string, 0, n),
		values: make([]interface{}, 0, n),
		index:  make(map[string]int, n),
	}
}

// RecordFromMap builds a record from m. Field order follows keys.
func RecordFromMap(keys []string, m map[string]interface{}) Record {
	r := NewRecord(len(keys))
	for _, k := range keys {
		r.Set(k, m[k])
	}
	return r
}

// Set assigns a value. An existing field with the same name in any case is overwritten.
func (r *Record) Set(field string, value interface{}) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	key := strings.ToLower(field)
	if i, ok := r.index[key]; ok {
		r.values[i] = value
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, field)
	r.values = append(r.values, value)
}

// Get returns the value of field and whether the field exists.
func (r Record) Get(field string) (interface{}, bool) {
	i, ok := r.index[strings.ToLower(field)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Value returns the value of field, or nil.
func (r Record) Value(field string) interface{} {
	v, _ := r.Get(field)
	return v
}

// IsNull reports whether field is absent or holds the null sentinel.
func (r Record) IsNull(field string) bool {
	return r.Value(field) == nil
}

// Fields returns the field names in column order.
func (r Record) Fields() []string {
	return r.fields
}

// Values returns the values in column order.
func (r Record) Values() []interface{} {
	return r.values
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Map copies the record into a plain map keyed by the original field names.
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.fields))
	for i, f := range r.fields {
		m[f] = r.values[i]
	}
	return m
}

// MarshalJSON writes the record as an object with fields in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := gojson.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
