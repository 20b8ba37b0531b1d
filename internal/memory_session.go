package internal

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"gopkg.in/inf.v0"
)

// memoryTable holds the rows of one table in insertion order. Only non-null cells are stored.
type memoryTable struct {
	schema  *scyllastore.Schema
	columns map[string]string
	rows    []scyllastore.Record
	index   map[string]int
}

// memorySession is an in-process Session that enforces the query-shape rules of the real
// engine: declared columns only, key-complete writes, relaxed filtering for non-key
// restrictions and grouping on key columns.
type memorySession struct {
	mu        sync.RWMutex
	keyspace  string
	migration scyllastore.MigrationMode
	tables    map[string]*memoryTable
	closed    bool
}

// NewMemorySession creates an empty in-memory session.
func NewMemorySession(_ context.Context, config *scyllastore.Config) (Session, error) {
	s := &memorySession{
		migration: scyllastore.MigrationSafe,
		tables:    make(map[string]*memoryTable),
	}
	if config != nil {
		s.keyspace = config.Connection.Keyspace
		if config.Connection.Migration != "" {
			s.migration = config.Connection.Migration
		}
	}
	return s, nil
}

func (s *memorySession) table(name string) (*memoryTable, error) {
	if s.closed {
		return nil, fmt.Errorf("session has been closed")
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("unconfigured table %s.%s", s.keyspace, name)
	}
	return t, nil
}

func (s *memorySession) Select(ctx context.Context, q *scyllastore.Query) ([]scyllastore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("query is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(q.Table)
	if err != nil {
		return nil, err
	}
	matchers, err := t.compile(q)
	if err != nil {
		return nil, err
	}

	var out []scyllastore.Record
	seen := make(map[string]bool)
	for _, row := range t.rows {
		if !matchesAll(row, matchers) {
			continue
		}
		if len(q.GroupBy) > 0 {
			group := groupKey(row, q.GroupBy)
			if seen[group] {
				continue
			}
			seen[group] = true
		}
		out = append(out, project(row, q.Projections))
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *memorySession) Insert(ctx context.Context, table string, record scyllastore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return err
	}
	if err := t.checkColumns(record); err != nil {
		return err
	}
	key, err := t.rowKey(record)
	if err != nil {
		return err
	}
	t.upsert(key, record)
	return nil
}

func (s *memorySession) Update(ctx context.Context, table string, key, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return false, err
	}
	if err := t.checkColumns(patch); err != nil {
		return false, err
	}
	for col := range patch {
		if t.schema.IsKeyColumn(col) {
			return false, fmt.Errorf("PRIMARY KEY part %s found in SET part", col)
		}
	}
	rk, err := t.rowKey(key)
	if err != nil {
		return false, err
	}
	if _, exists := t.index[rk]; !exists && opts != nil && opts.IfExists {
		return false, nil
	}

	merged := make(scyllastore.Record, len(key)+len(patch))
	for k, v := range key {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	t.upsert(rk, merged)
	return true, nil
}

func (s *memorySession) Delete(ctx context.Context, table string, key scyllastore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return err
	}
	rk, err := t.rowKey(key)
	if err != nil {
		return err
	}
	pos, ok := t.index[rk]
	if !ok {
		return nil
	}
	t.rows = append(t.rows[:pos], t.rows[pos+1:]...)
	t.reindex()
	return nil
}

func (s *memorySession) SyncSchema(ctx context.Context, schema *scyllastore.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session has been closed")
	}

	var existing map[string]string
	if t, ok := s.tables[schema.TableName]; ok {
		existing = t.columns
	}
	plan, err := planSchemaSync(s.migration, schema, existing)
	if err != nil {
		return err
	}
	s.apply(plan, schema)
	return nil
}

func (s *memorySession) apply(plan *schemaPlan, schema *scyllastore.Schema) {
	if plan.dropTable {
		delete(s.tables, schema.TableName)
	}
	if plan.createTable {
		cols := make(map[string]string)
		for _, c := range schema.Columns() {
			cols[c.Name] = c.Type
		}
		s.tables[schema.TableName] = &memoryTable{
			schema:  schema,
			columns: cols,
			index:   make(map[string]int),
		}
		return
	}
	t := s.tables[schema.TableName]
	for _, c := range plan.addColumns {
		t.columns[c.Name] = c.Type
	}
	t.schema = schema
}

func (s *memorySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (t *memoryTable) checkColumns(record scyllastore.Record) error {
	for col := range record {
		if _, ok := t.columns[col]; !ok {
			return fmt.Errorf("undefined column name %s", col)
		}
	}
	return nil
}

func (t *memoryTable) rowKey(record scyllastore.Record) (string, error) {
	parts := make([]string, 0, len(t.schema.Key.Columns()))
	for _, col := range t.schema.Key.Columns() {
		v, ok := record[col]
		if !ok || v == nil {
			return "", fmt.Errorf("missing mandatory PRIMARY KEY part %s", col)
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "\x00"), nil
}

// upsert merges record into the row at key. Null cells delete the stored value.
func (t *memoryTable) upsert(key string, record scyllastore.Record) {
	pos, ok := t.index[key]
	if !ok {
		row := make(scyllastore.Record, len(record))
		for k, v := range record {
			if v != nil {
				row[k] = v
			}
		}
		t.rows = append(t.rows, row)
		t.index[key] = len(t.rows) - 1
		return
	}
	row := t.rows[pos].Clone()
	for k, v := range record {
		if v == nil {
			delete(row, k)
			continue
		}
		row[k] = v
	}
	t.rows[pos] = row
}

func (t *memoryTable) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		if key, err := t.rowKey(row); err == nil {
			t.index[key] = i
		}
	}
}

type matcher struct {
	field string
	match func(v any) bool
}

// compile validates the query shape and builds row matchers.
func (t *memoryTable) compile(q *scyllastore.Query) ([]matcher, error) {
	matchers := make([]matcher, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		colType, ok := t.columns[p.Field]
		if !ok {
			return nil, fmt.Errorf("undefined column name %s", p.Field)
		}
		if !q.AllowFiltering && !t.schema.IsPartitionColumn(p.Field) && !t.schema.IsIndexed(p.Field) {
			return nil, fmt.Errorf("cannot execute this query as it might involve data filtering; use ALLOW FILTERING")
		}
		m, err := newMatcher(p, colType)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	for _, proj := range q.Projections {
		if _, ok := t.columns[proj.Field]; !ok {
			return nil, fmt.Errorf("undefined column name %s", proj.Field)
		}
	}
	for _, g := range q.GroupBy {
		if !t.schema.IsKeyColumn(g) {
			return nil, fmt.Errorf("group by is only supported on primary key columns, got %s", g)
		}
	}
	return matchers, nil
}

func newMatcher(p scyllastore.Predicate, colType string) (matcher, error) {
	m := matcher{field: p.Field}
	switch p.Op {
	case scyllastore.OpEq:
		m.match = func(v any) bool { return valuesEqual(v, p.Value) }
	case scyllastore.OpIn:
		items, ok := toAnySlice(p.Value)
		if !ok {
			return m, fmt.Errorf("invalid IN value for column %s", p.Field)
		}
		m.match = func(v any) bool {
			for _, item := range items {
				if valuesEqual(v, item) {
					return true
				}
			}
			return false
		}
	case scyllastore.OpGt, scyllastore.OpGte, scyllastore.OpLt, scyllastore.OpLte:
		op := p.Op
		m.match = func(v any) bool {
			c, ok := compareValues(v, p.Value)
			if !ok {
				return false
			}
			switch op {
			case scyllastore.OpGt:
				return c > 0
			case scyllastore.OpGte:
				return c >= 0
			case scyllastore.OpLt:
				return c < 0
			default:
				return c <= 0
			}
		}
	case scyllastore.OpLike:
		switch strings.ToLower(colType) {
		case "text", "varchar", "ascii":
		default:
			return m, fmt.Errorf("LIKE is only supported on string columns, %s is %s", p.Field, colType)
		}
		pattern, ok := p.Value.(string)
		if !ok {
			return m, fmt.Errorf("invalid LIKE pattern for column %s", p.Field)
		}
		re, err := likeToRegexp(pattern)
		if err != nil {
			return m, err
		}
		m.match = func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}
	default:
		return m, fmt.Errorf("unsupported restriction %s on column %s", cqlOperator(p.Op), p.Field)
	}
	return m, nil
}

// likeToRegexp converts a LIKE pattern: % matches any run, _ matches one character.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile("(?s)" + b.String())
}

func matchesAll(row scyllastore.Record, matchers []matcher) bool {
	for _, m := range matchers {
		v, ok := row[m.field]
		if !ok || v == nil {
			return false
		}
		if !m.match(v) {
			return false
		}
	}
	return true
}

func groupKey(row scyllastore.Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%v", row[c])
	}
	return strings.Join(parts, "\x00")
}

func project(row scyllastore.Record, projections []scyllastore.Projection) scyllastore.Record {
	if len(projections) == 0 {
		return row.Clone()
	}
	out := make(scyllastore.Record, len(projections))
	for _, p := range projections {
		if v, ok := row[p.Field]; ok {
			out[p.OutputName()] = v
		}
	}
	return out
}

func valuesEqual(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

// compareValues orders two cell values of compatible kinds.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case gocql.UUID:
		bv, ok := toUUID(b)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av[:], bv[:]), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 0, false
		}
		return 0, true
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case *inf.Dec:
		if n == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}
