package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/scyllastore"
)

// schemaPlan is the set of DDL actions that brings a table in line with its schema.
type schemaPlan struct {
	createTable bool
	dropTable   bool
	addColumns  []scyllastore.ColumnDef
	indexes     []string
}

// columnDiff describes how an existing table differs from the schema.
type columnDiff struct {
	missing    []scyllastore.ColumnDef
	mismatched []string
	extra      []string
}

func (d columnDiff) empty() bool {
	return len(d.missing) == 0 && len(d.mismatched) == 0 && len(d.extra) == 0
}

func (d columnDiff) String() string {
	var parts []string
	if len(d.missing) > 0 {
		names := make([]string, len(d.missing))
		for i, c := range d.missing {
			names[i] = c.Name
		}
		parts = append(parts, "missing columns "+strings.Join(names, ", "))
	}
	if len(d.mismatched) > 0 {
		parts = append(parts, "type changes on "+strings.Join(d.mismatched, ", "))
	}
	if len(d.extra) > 0 {
		parts = append(parts, "undeclared columns "+strings.Join(d.extra, ", "))
	}
	return strings.Join(parts, "; ")
}

// normalizeCQLType folds type aliases reported by system_schema.
func normalizeCQLType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "varchar" {
		return "text"
	}
	return t
}

func diffColumns(schema *scyllastore.Schema, existing map[string]string) columnDiff {
	var d columnDiff
	desired := make(map[string]string)
	for _, c := range schema.Columns() {
		desired[c.Name] = normalizeCQLType(c.Type)
		have, ok := existing[c.Name]
		switch {
		case !ok:
			d.missing = append(d.missing, c)
		case normalizeCQLType(have) != normalizeCQLType(c.Type):
			d.mismatched = append(d.mismatched, c.Name)
		}
	}
	for name := range existing {
		if _, ok := desired[name]; !ok {
			d.extra = append(d.extra, name)
		}
	}
	sort.Strings(d.mismatched)
	sort.Strings(d.extra)
	return d
}

// planSchemaSync decides the DDL for one table. existing holds the current column types
// and is nil when the table does not exist.
func planSchemaSync(mode scyllastore.MigrationMode, schema *scyllastore.Schema, existing map[string]string) (*schemaPlan, error) {
	plan := &schemaPlan{indexes: append([]string(nil), schema.Indexes...)}
	if existing == nil {
		plan.createTable = true
		return plan, nil
	}

	diff := diffColumns(schema, existing)
	if diff.empty() {
		return plan, nil
	}

	switch mode {
	case scyllastore.MigrationDrop:
		plan.dropTable = true
		plan.createTable = true
		return plan, nil
	case scyllastore.MigrationAlter:
		if len(diff.mismatched) > 0 {
			return nil, scyllastore.NewSchemaInvalidError(fmt.Sprintf(
				"table %s cannot be altered: %s", schema.TableName, diff)).WithDetail("migration", string(mode))
		}
		for _, c := range diff.missing {
			if schema.IsKeyColumn(c.Name) {
				return nil, scyllastore.NewSchemaInvalidError(fmt.Sprintf(
					"table %s cannot be altered: key column %s is missing", schema.TableName, c.Name)).WithDetail("migration", string(mode))
			}
		}
		plan.addColumns = diff.missing
		return plan, nil
	default:
		return nil, scyllastore.NewSchemaInvalidError(fmt.Sprintf(
			"table %s differs from its schema: %s", schema.TableName, diff)).WithDetail("migration", string(mode))
	}
}

// statements renders the plan as CQL in execution order.
func (p *schemaPlan) statements(keyspace string, schema *scyllastore.Schema) []string {
	var stmts []string
	if p.dropTable {
		stmts = append(stmts, RenderDropTable(keyspace, schema.TableName))
	}
	if p.createTable {
		stmts = append(stmts, RenderCreateTable(keyspace, schema))
	}
	for _, c := range p.addColumns {
		stmts = append(stmts, RenderAddColumn(keyspace, schema.TableName, c))
	}
	for _, idx := range p.indexes {
		stmts = append(stmts, RenderCreateIndex(keyspace, schema.TableName, idx))
	}
	return stmts
}
