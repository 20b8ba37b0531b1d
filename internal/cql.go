package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/scyllastore"
)

// quoteIdentifier quotes a CQL identifier, preserving case.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualifiedTable(keyspace, table string) string {
	if keyspace == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(keyspace) + "." + quoteIdentifier(table)
}

// cqlOperator maps a filter operator to its CQL spelling. Unknown operators are forwarded
// by name: "$contains_key" becomes "CONTAINS KEY".
func cqlOperator(op scyllastore.Operator) string {
	switch op {
	case scyllastore.OpEq:
		return "="
	case scyllastore.OpIn:
		return "IN"
	case scyllastore.OpGt:
		return ">"
	case scyllastore.OpGte:
		return ">="
	case scyllastore.OpLt:
		return "<"
	case scyllastore.OpLte:
		return "<="
	case scyllastore.OpLike:
		return "LIKE"
	default:
		name := strings.TrimPrefix(string(op), "$")
		return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
	}
}

// RenderSelect renders a Query as a CQL SELECT with positional bind values in predicate order.
func RenderSelect(keyspace string, q *scyllastore.Query) (string, []any, error) {
	if q == nil || q.Table == "" {
		return "", nil, fmt.Errorf("query table is required")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Projections) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(q.Projections))
		for i, p := range q.Projections {
			col := quoteIdentifier(p.Field)
			if p.Alias != "" {
				col += " AS " + quoteIdentifier(p.Alias)
			}
			cols[i] = col
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(qualifiedTable(keyspace, q.Table))

	args := make([]any, 0, len(q.Predicates))
	if len(q.Predicates) > 0 {
		conds := make([]string, len(q.Predicates))
		for i, p := range q.Predicates {
			conds[i] = fmt.Sprintf("%s %s ?", quoteIdentifier(p.Field), cqlOperator(p.Op))
			args = append(args, p.Value)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			cols[i] = quoteIdentifier(g)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(cols, ", "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.AllowFiltering {
		b.WriteString(" ALLOW FILTERING")
	}
	return b.String(), args, nil
}

// RenderInsert renders an INSERT of every column of the record, columns sorted by name.
func RenderInsert(keyspace, table string, record scyllastore.Record) (string, []any) {
	cols := sortedKeys(record)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
		placeholders[i] = "?"
		args[i] = record[c]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualifiedTable(keyspace, table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return stmt, args
}

// RenderUpdate renders an UPDATE of the patch columns for the row identified by key.
func RenderUpdate(keyspace, table string, key, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (string, []any) {
	setCols := sortedKeys(patch)
	keyCols := sortedKeys(key)
	args := make([]any, 0, len(setCols)+len(keyCols))

	sets := make([]string, len(setCols))
	for i, c := range setCols {
		sets[i] = quoteIdentifier(c) + " = ?"
		args = append(args, patch[c])
	}
	wheres := make([]string, len(keyCols))
	for i, c := range keyCols {
		wheres[i] = quoteIdentifier(c) + " = ?"
		args = append(args, key[c])
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(qualifiedTable(keyspace, table))
	if opts != nil && opts.TTL > 0 {
		fmt.Fprintf(&b, " USING TTL %d", opts.TTL)
	}
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(wheres, " AND "))
	if opts != nil && opts.IfExists {
		b.WriteString(" IF EXISTS")
	}
	return b.String(), args
}

// RenderDelete renders a DELETE of the row identified by key.
func RenderDelete(keyspace, table string, key scyllastore.Record) (string, []any) {
	keyCols := sortedKeys(key)
	wheres := make([]string, len(keyCols))
	args := make([]any, len(keyCols))
	for i, c := range keyCols {
		wheres[i] = quoteIdentifier(c) + " = ?"
		args[i] = key[c]
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		qualifiedTable(keyspace, table), strings.Join(wheres, " AND ")), args
}

// RenderCreateKeyspace renders the keyspace DDL with the configured replication.
func RenderCreateKeyspace(keyspace string, repl scyllastore.ReplicationConfig) string {
	class := repl.Class
	if class == "" {
		class = "SimpleStrategy"
	}
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': '%s', 'replication_factor': %d}",
		quoteIdentifier(keyspace), class, repl.ReplicationFactor)
}

// RenderCreateTable renders the table DDL for the schema.
func RenderCreateTable(keyspace string, schema *scyllastore.Schema) string {
	cols := schema.Columns()
	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, quoteIdentifier(c.Name)+" "+c.Type)
	}

	partition := make([]string, len(schema.Key.Partition))
	for i, p := range schema.Key.Partition {
		partition[i] = quoteIdentifier(p)
	}
	pk := strings.Join(partition, ", ")
	if len(partition) > 1 {
		pk = "(" + pk + ")"
	}
	for _, c := range schema.Key.Clustering {
		pk += ", " + quoteIdentifier(c)
	}
	defs = append(defs, "PRIMARY KEY ("+pk+")")

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		qualifiedTable(keyspace, schema.TableName), strings.Join(defs, ", "))
}

// indexName is the deterministic secondary index name for a column.
func indexName(table, column string) string {
	return table + "_" + column + "_idx"
}

// RenderCreateIndex renders a secondary index on one column.
func RenderCreateIndex(keyspace, table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdentifier(indexName(table, column)), qualifiedTable(keyspace, table), quoteIdentifier(column))
}

// RenderAddColumn renders an ALTER TABLE ... ADD for one column.
func RenderAddColumn(keyspace, table string, col scyllastore.ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s", qualifiedTable(keyspace, table), quoteIdentifier(col.Name), col.Type)
}

// RenderDropTable renders a DROP TABLE.
func RenderDropTable(keyspace, table string) string {
	return "DROP TABLE IF EXISTS " + qualifiedTable(keyspace, table)
}
