package scyllastore

import (
	"fmt"
	"strings"
)

// IDField is the identifier column every table managed by the adapter carries.
const IDField = "id"

// Record is a single row keyed by column name.
type Record map[string]any

// ID returns the identifier value of the record, or nil when absent.
func (r Record) ID() any {
	if r == nil {
		return nil
	}
	return r[IDField]
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Operator is a filter operator key as it appears in a query map.
type Operator string

const (
	OpEq      Operator = "$eq"
	OpIn      Operator = "$in"
	OpGt      Operator = "$gt"
	OpGte     Operator = "$gte"
	OpLt      Operator = "$lt"
	OpLte     Operator = "$lte"
	OpLike    Operator = "$like"
	OpGroupBy Operator = "$groupby"
)

var knownOperators = map[Operator]struct{}{
	OpEq:      {},
	OpIn:      {},
	OpGt:      {},
	OpGte:     {},
	OpLt:      {},
	OpLte:     {},
	OpLike:    {},
	OpGroupBy: {},
}

// IsKnown reports whether the operator belongs to the closed set the adapter maps itself.
func (o Operator) IsKnown() bool {
	_, ok := knownOperators[o]
	return ok
}

// IsOperatorKey reports whether a query map key is an operator rather than a field name.
func IsOperatorKey(key string) bool {
	return strings.HasPrefix(key, "$")
}

// FilterParams is the engine-neutral filter description accepted by Find and Count.
type FilterParams struct {
	// Q maps a field name to a literal (equality) or to an operator map such as
	// {"$gt": 20, "$lte": 24}. A top-level "$groupby" key lists grouping fields.
	Q            map[string]any `json:"q,omitempty"`
	Search       string         `json:"search,omitempty"`
	SearchFields []string       `json:"searchFields,omitempty"`
	Limit        int            `json:"limit,omitempty"`
	Select       []string       `json:"select,omitempty"`
}

// WithoutLimit returns a copy of the params with the limit cleared.
func (p *FilterParams) WithoutLimit() *FilterParams {
	if p == nil {
		return &FilterParams{}
	}
	cp := *p
	cp.Limit = 0
	return &cp
}

// UpdateOptions tunes UpdateByID and UpdateMany.
type UpdateOptions struct {
	// IfExists makes the update conditional on the row existing (lightweight transaction).
	// UpdateByID always sets it.
	IfExists bool `json:"if_exists,omitempty"`
	// TTL in seconds applied to the written cells, 0 for none.
	TTL int `json:"ttl,omitempty"`
}

// Projection is one output column, optionally aliased.
type Projection struct {
	Field string
	Alias string
}

// OutputName is the key the projected value is stored under.
func (p Projection) OutputName() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Field
}

func (p Projection) String() string {
	if p.Alias == "" {
		return p.Field
	}
	return p.Field + " AS " + p.Alias
}

// ParseProjection parses "field" or "field as alias" (case-insensitive AS).
func ParseProjection(s string) (Projection, error) {
	parts := strings.Fields(s)
	switch {
	case len(parts) == 1:
		return Projection{Field: parts[0]}, nil
	case len(parts) == 3 && strings.EqualFold(parts[1], "as"):
		return Projection{Field: parts[0], Alias: parts[2]}, nil
	default:
		return Projection{}, fmt.Errorf("invalid select expression: %q", s)
	}
}
