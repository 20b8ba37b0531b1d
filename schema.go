package scyllastore

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed model.schema.json
var modelSchemaJSON []byte

// modelSchema is the JSON Schema every table model must satisfy, resolved once.
var modelSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(modelSchemaJSON, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}
	return schema.Resolve(&jsonschema.ResolveOptions{})
})

// validateModel checks a decoded JSON table model against the model schema.
func validateModel(doc any) error {
	resolved, err := modelSchema()
	if err != nil {
		return fmt.Errorf("failed to resolve table model schema: %w", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return NewSchemaInvalidError("schema does not match the table model").WithCause(err)
	}
	return nil
}

// FieldSchema declares a column type, e.g. "text", "int", "uuid".
type FieldSchema struct {
	Type string `json:"type"`
}

// TimestampOptions maps logical timestamp names to stored column names.
type TimestampOptions struct {
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SchemaOptions holds optional table behaviour.
type SchemaOptions struct {
	Timestamps *TimestampOptions `json:"timestamps,omitempty"`
}

// KeySpec is the primary key: partition columns followed by clustering columns.
//
// In JSON a plain list makes its first element the partition key and the rest clustering
// columns; a nested list as first element declares a composite partition key:
//
//	["id"]                      partition (id)
//	[["tenant", "id"], "ts"]    partition (tenant, id), clustering ts
type KeySpec struct {
	Partition  []string
	Clustering []string
}

// Columns returns every key column, partition first.
func (k KeySpec) Columns() []string {
	out := make([]string, 0, len(k.Partition)+len(k.Clustering))
	out = append(out, k.Partition...)
	return append(out, k.Clustering...)
}

func (k *KeySpec) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("key must be a list: %w", err)
	}
	k.Partition, k.Clustering = nil, nil
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if i == 0 {
				k.Partition = []string{name}
			} else {
				k.Clustering = append(k.Clustering, name)
			}
			continue
		}
		var composite []string
		if i != 0 {
			return fmt.Errorf("only the first key element may be a composite partition key")
		}
		if err := json.Unmarshal(item, &composite); err != nil {
			return fmt.Errorf("invalid key element %s: %w", string(item), err)
		}
		k.Partition = composite
	}
	return nil
}

func (k KeySpec) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, 1+len(k.Clustering))
	switch len(k.Partition) {
	case 0:
	case 1:
		out = append(out, k.Partition[0])
	default:
		out = append(out, k.Partition)
	}
	for _, c := range k.Clustering {
		out = append(out, c)
	}
	return json.Marshal(out)
}

// Schema is the table model supplied by the host service. The adapter never mutates it.
type Schema struct {
	Fields    map[string]FieldSchema `json:"fields"`
	Key       KeySpec                `json:"key"`
	TableName string                 `json:"table_name"`
	Indexes   []string               `json:"indexes,omitempty"`
	Options   SchemaOptions          `json:"options,omitempty"`
}

// LoadSchemaFile reads a JSON table model from disk and validates its shape.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewSchemaInvalidError(fmt.Sprintf("failed to parse schema file %s", path)).WithCause(err)
	}
	if err := validateModel(doc); err != nil {
		return nil, err
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, NewSchemaInvalidError(fmt.Sprintf("failed to parse schema file %s", path)).WithCause(err)
	}
	return &s, nil
}

// Validate checks the table model shape, then that key and index columns are declared.
func (s *Schema) Validate() error {
	if s == nil {
		return NewMissingSchemaError()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return NewSchemaInvalidError("failed to encode schema").WithCause(err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return NewSchemaInvalidError("failed to encode schema").WithCause(err)
	}
	if err := validateModel(doc); err != nil {
		return err
	}
	// a Go-built KeySpec can carry clustering columns without a partition
	if len(s.Key.Partition) == 0 {
		return NewSchemaInvalidError("key must declare a partition column").WithField("key")
	}
	for _, col := range s.Key.Columns() {
		if _, ok := s.Fields[col]; !ok {
			return NewSchemaInvalidError(fmt.Sprintf("key column %q is not declared", col)).WithField("key")
		}
	}
	for _, idx := range s.Indexes {
		if _, ok := s.Fields[idx]; !ok {
			return NewSchemaInvalidError(fmt.Sprintf("index column %q is not declared", idx)).WithField("indexes")
		}
	}
	return nil
}

// IDType returns the lower-cased CQL type of the identifier column.
func (s *Schema) IDType() string {
	if s == nil {
		return ""
	}
	return strings.ToLower(s.Fields[IDField].Type)
}

// HasField reports whether a column is declared, including managed timestamp columns.
func (s *Schema) HasField(name string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.Fields[name]; ok {
		return true
	}
	for _, col := range s.TimestampColumns() {
		if col == name {
			return true
		}
	}
	return false
}

// IsKeyColumn reports whether the column is part of the primary key.
func (s *Schema) IsKeyColumn(name string) bool {
	for _, col := range s.Key.Columns() {
		if col == name {
			return true
		}
	}
	return false
}

// IsPartitionColumn reports whether the column is part of the partition key.
func (s *Schema) IsPartitionColumn(name string) bool {
	for _, col := range s.Key.Partition {
		if col == name {
			return true
		}
	}
	return false
}

// IsIndexed reports whether the column has a secondary index.
func (s *Schema) IsIndexed(name string) bool {
	for _, idx := range s.Indexes {
		if idx == name {
			return true
		}
	}
	return false
}

// TimestampColumns returns the managed timestamp column names, created first.
func (s *Schema) TimestampColumns() []string {
	if s == nil || s.Options.Timestamps == nil {
		return nil
	}
	var out []string
	if c := s.Options.Timestamps.CreatedAt; c != "" {
		out = append(out, c)
	}
	if c := s.Options.Timestamps.UpdatedAt; c != "" {
		out = append(out, c)
	}
	return out
}

// Columns returns every declared column with its CQL type, sorted by name, including
// managed timestamp columns.
func (s *Schema) Columns() []ColumnDef {
	cols := make([]ColumnDef, 0, len(s.Fields)+2)
	for name, f := range s.Fields {
		cols = append(cols, ColumnDef{Name: name, Type: strings.ToLower(f.Type)})
	}
	for _, ts := range s.TimestampColumns() {
		if _, declared := s.Fields[ts]; !declared {
			cols = append(cols, ColumnDef{Name: ts, Type: "timestamp"})
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// ColumnDef is a column name with its CQL type.
type ColumnDef struct {
	Name string
	Type string
}
