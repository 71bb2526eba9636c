package models

import (
	"strings"
	"time"
)

// EntityStructure describes the columns of a table, view or query.
type EntityStructure struct {
	// EntityName is the name callers use
	EntityName string `json:"entity_name"`
	// DatasourceEntityName is the name as stored in the database catalog
	DatasourceEntityName string `json:"datasource_entity_name"`
	// Fields in ordinal order
	Fields []EntityField `json:"fields"`
	// PrimaryKeys lists key columns, if known
	PrimaryKeys  []string  `json:"primary_keys,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// EntityField is one column.
type EntityField struct {
	FieldName string `json:"field_name"`
	// FieldType is a semantic type name such as System.Int32
	FieldType string `json:"field_type"`
	// NativeType is the database type as reported by the catalog
	NativeType  string `json:"native_type"`
	AllowDBNull bool   `json:"allow_db_null"`
	IsKey       bool   `json:"is_key"`
	Ordinal     int    `json:"ordinal"`
}

// Field returns the field named name, ignoring case.
func (s *EntityStructure) Field(name string) (EntityField, bool) {
	if s == nil {
		return EntityField{}, false
	}
	for _, f := range s.Fields {
		if strings.EqualFold(f.FieldName, name) {
			return f, true
		}
	}
	return EntityField{}, false
}

// FieldNames returns column names in ordinal order.
func (s *EntityStructure) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.FieldName
	}
	return names
}
