package internal

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"gopkg.in/inf.v0"
)

// coerceValue adapts loosely typed input (JSON numbers, textual ids and instants) to the
// Go type the driver marshals for the column type. Values it cannot adapt pass through
// untouched so the engine reports the mismatch.
func coerceValue(colType string, value any) any {
	if value == nil {
		return nil
	}
	switch strings.ToLower(colType) {
	case "uuid", "timeuuid":
		if id, ok := toUUID(value); ok {
			return id
		}
	case "int", "bigint", "smallint", "tinyint", "varint", "counter":
		switch v := value.(type) {
		case float64:
			if v == math.Trunc(v) {
				return int64(v)
			}
		case float32:
			if float64(v) == math.Trunc(float64(v)) {
				return int64(v)
			}
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
		}
	case "double":
		switch v := value.(type) {
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case float32:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	case "float":
		// the driver only marshals float32 into a CQL float
		switch v := value.(type) {
		case float64:
			return float32(v)
		case int:
			return float32(v)
		case int64:
			return float32(v)
		case string:
			if f, err := strconv.ParseFloat(v, 32); err == nil {
				return float32(f)
			}
		}
	case "decimal":
		if d, ok := toDecimal(value); ok {
			return d
		}
	case "timestamp", "date":
		if s, ok := value.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts
			}
		}
	case "boolean":
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	}
	return value
}

// toDecimal converts numeric input to the arbitrary-precision form the driver marshals
// into a CQL decimal. Floats go through their shortest decimal text so 0.1 stays 0.1.
func toDecimal(value any) (*inf.Dec, bool) {
	switch v := value.(type) {
	case *inf.Dec:
		return v, v != nil
	case inf.Dec:
		return &v, true
	case int:
		return inf.NewDec(int64(v), 0), true
	case int32:
		return inf.NewDec(int64(v), 0), true
	case int64:
		return inf.NewDec(v, 0), true
	case float32:
		return new(inf.Dec).SetString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		return new(inf.Dec).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	case string:
		return new(inf.Dec).SetString(strings.TrimSpace(v))
	}
	return nil, false
}

// coerceRecord returns a copy of record with every declared column coerced.
func coerceRecord(schema *scyllastore.Schema, record scyllastore.Record) scyllastore.Record {
	out := make(scyllastore.Record, len(record))
	for k, v := range record {
		if f, ok := schema.Fields[k]; ok {
			out[k] = coerceValue(f.Type, v)
			continue
		}
		out[k] = v
	}
	return out
}

// keyOf extracts the primary key columns of a stored row.
func keyOf(schema *scyllastore.Schema, row scyllastore.Record) scyllastore.Record {
	key := make(scyllastore.Record, len(schema.Key.Columns()))
	for _, col := range schema.Key.Columns() {
		key[col] = row[col]
	}
	return key
}

// idIsWholeKey reports whether the identifier alone addresses a row.
func idIsWholeKey(schema *scyllastore.Schema) bool {
	cols := schema.Key.Columns()
	return len(cols) == 1 && cols[0] == scyllastore.IDField
}

// normalizeRow converts driver values to the shapes records carry.
func normalizeRow(row map[string]any) scyllastore.Record {
	out := make(scyllastore.Record, len(row))
	for k, v := range row {
		switch tv := v.(type) {
		case *gocql.UUID:
			if tv != nil {
				out[k] = *tv
			}
		default:
			out[k] = v
		}
	}
	return out
}

// nowMillis is the write timestamp truncated to the engine's timestamp precision.
func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
