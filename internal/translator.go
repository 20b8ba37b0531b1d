package internal

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lychee-technology/scyllastore"
	"go.uber.org/zap"
)

// Translator turns engine-neutral filter params into a Query for one table.
type Translator struct {
	schema *scyllastore.Schema
}

func NewTranslator(schema *scyllastore.Schema) *Translator {
	return &Translator{schema: schema}
}

// Translate builds the engine query. It always requests relaxed filtering so that non-key
// columns can be restricted; field existence is left to the engine, which rejects
// undeclared columns.
func (t *Translator) Translate(params *scyllastore.FilterParams) (*scyllastore.Query, error) {
	q := &scyllastore.Query{
		Table:          t.schema.TableName,
		AllowFiltering: true,
	}
	if params == nil {
		return q, nil
	}

	for _, key := range sortedKeys(params.Q) {
		value := params.Q[key]
		if scyllastore.IsOperatorKey(key) {
			if scyllastore.Operator(key) != scyllastore.OpGroupBy {
				return nil, scyllastore.NewInvalidFilterError(key,
					fmt.Sprintf("operator %s is only valid inside a field condition", key))
			}
			fields, err := toStringList(value)
			if err != nil {
				return nil, scyllastore.NewInvalidFilterError(key, err.Error())
			}
			q.GroupBy = appendUnique(q.GroupBy, fields...)
			continue
		}

		ops, isOperatorMap := operatorMap(value)
		if !isOperatorMap {
			q.Predicates = append(q.Predicates, scyllastore.Predicate{
				Field: key,
				Op:    scyllastore.OpEq,
				Value: t.coerce(key, value),
			})
			continue
		}

		for _, opKey := range sortedKeys(ops) {
			pred, groupBy, err := t.translateOperator(key, scyllastore.Operator(opKey), ops[opKey])
			if err != nil {
				return nil, err
			}
			if groupBy != nil {
				q.GroupBy = appendUnique(q.GroupBy, groupBy...)
				continue
			}
			q.Predicates = append(q.Predicates, *pred)
		}
	}

	if params.Search != "" {
		if len(params.SearchFields) == 0 {
			return nil, scyllastore.NewUnsupportedSearchError()
		}
		pattern := params.Search
		if !strings.Contains(pattern, "%") {
			pattern = "%" + pattern + "%"
		}
		for _, field := range params.SearchFields {
			q.Predicates = append(q.Predicates, scyllastore.Predicate{
				Field: field,
				Op:    scyllastore.OpLike,
				Value: pattern,
			})
		}
	}

	if params.Limit > 0 {
		q.Limit = params.Limit
	}

	for _, sel := range params.Select {
		proj, err := scyllastore.ParseProjection(sel)
		if err != nil {
			return nil, scyllastore.NewInvalidFilterError("select", err.Error())
		}
		q.Projections = append(q.Projections, proj)
	}

	return q, nil
}

func (t *Translator) translateOperator(field string, op scyllastore.Operator, value any) (*scyllastore.Predicate, []string, error) {
	switch op {
	case scyllastore.OpEq, scyllastore.OpGt, scyllastore.OpGte, scyllastore.OpLt, scyllastore.OpLte:
		return &scyllastore.Predicate{Field: field, Op: op, Value: t.coerce(field, value)}, nil, nil
	case scyllastore.OpIn:
		items, ok := toAnySlice(value)
		if !ok {
			return nil, nil, scyllastore.NewInvalidFilterError(field, "$in requires a list of values")
		}
		coerced := make([]any, len(items))
		for i, item := range items {
			coerced[i] = t.coerce(field, item)
		}
		return &scyllastore.Predicate{Field: field, Op: op, Value: coerced}, nil, nil
	case scyllastore.OpLike:
		s, ok := value.(string)
		if !ok {
			return nil, nil, scyllastore.NewInvalidFilterError(field, "$like requires a string pattern")
		}
		return &scyllastore.Predicate{Field: field, Op: op, Value: s}, nil, nil
	case scyllastore.OpGroupBy:
		fields, err := toStringList(value)
		if err != nil {
			return nil, nil, scyllastore.NewInvalidFilterError(field, err.Error())
		}
		if len(fields) == 0 {
			fields = []string{field}
		}
		return nil, fields, nil
	default:
		zap.S().Warnw("forwarding unrecognized filter operator", "table", t.schema.TableName, "field", field, "operator", string(op))
		return &scyllastore.Predicate{Field: field, Op: op, Value: value, Unchecked: true}, nil, nil
	}
}

func (t *Translator) coerce(field string, value any) any {
	f, ok := t.schema.Fields[field]
	if !ok {
		return value
	}
	return coerceValue(f.Type, value)
}

// operatorMap reports whether value is a non-empty map whose keys are all operators.
func operatorMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !scyllastore.IsOperatorKey(k) {
			return nil, false
		}
	}
	return m, true
}

func toAnySlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if s, ok := value.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// []byte is a blob value, not a list
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toStringList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case bool:
		return nil, nil
	}
	items, ok := toAnySlice(value)
	if !ok {
		return nil, fmt.Errorf("$groupby requires a list of field names")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("$groupby field names must be strings, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range dst {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, item)
		}
	}
	return dst
}
