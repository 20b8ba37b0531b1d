package internal

import (
	"context"
	"testing"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveColumns(schema *scyllastore.Schema) map[string]string {
	cols := make(map[string]string)
	for _, c := range schema.Columns() {
		cols[c.Name] = c.Type
	}
	return cols
}

func TestPlanSchemaSync_NewTable(t *testing.T) {
	schema := usersSchema()
	plan, err := planSchemaSync(scyllastore.MigrationSafe, schema, nil)
	require.NoError(t, err)
	assert.True(t, plan.createTable)
	assert.False(t, plan.dropTable)

	stmts := plan.statements("ks", schema)
	require.Len(t, stmts, 2)
	assert.Equal(t, RenderCreateTable("ks", schema), stmts[0])
	assert.Equal(t, RenderCreateIndex("ks", "users", "username"), stmts[1])
}

func TestPlanSchemaSync_UpToDate(t *testing.T) {
	schema := usersSchema()
	existing := liveColumns(schema)
	existing["username"] = "varchar"

	for _, mode := range []scyllastore.MigrationMode{scyllastore.MigrationSafe, scyllastore.MigrationAlter, scyllastore.MigrationDrop} {
		plan, err := planSchemaSync(mode, schema, existing)
		require.NoError(t, err)
		assert.False(t, plan.createTable)
		assert.Empty(t, plan.addColumns)
		assert.Equal(t, []string{RenderCreateIndex("ks", "users", "username")}, plan.statements("ks", schema))
	}
}

func TestPlanSchemaSync_Drift(t *testing.T) {
	schema := usersSchema()
	existing := liveColumns(schema)
	delete(existing, "email")

	t.Run("safe refuses", func(t *testing.T) {
		_, err := planSchemaSync(scyllastore.MigrationSafe, schema, existing)
		require.Error(t, err)
		assert.True(t, scyllastore.IsConfigurationError(err))
		assert.Contains(t, err.Error(), "missing columns email")
	})

	t.Run("alter adds columns", func(t *testing.T) {
		plan, err := planSchemaSync(scyllastore.MigrationAlter, schema, existing)
		require.NoError(t, err)
		require.Len(t, plan.addColumns, 1)
		assert.Equal(t, scyllastore.ColumnDef{Name: "email", Type: "text"}, plan.addColumns[0])
		assert.Contains(t, plan.statements("ks", schema), `ALTER TABLE "ks"."users" ADD "email" text`)
	})

	t.Run("alter cannot change types", func(t *testing.T) {
		changed := liveColumns(schema)
		changed["age"] = "text"
		_, err := planSchemaSync(scyllastore.MigrationAlter, schema, changed)
		require.Error(t, err)
	})

	t.Run("drop recreates", func(t *testing.T) {
		plan, err := planSchemaSync(scyllastore.MigrationDrop, schema, existing)
		require.NoError(t, err)
		stmts := plan.statements("ks", schema)
		require.GreaterOrEqual(t, len(stmts), 2)
		assert.Equal(t, RenderDropTable("ks", "users"), stmts[0])
		assert.Equal(t, RenderCreateTable("ks", schema), stmts[1])
	})
}

func TestMemorySession_SyncSchemaModes(t *testing.T) {
	ctx := context.Background()
	original := usersSchema()
	evolved := usersSchema()
	evolved.Fields["nickname"] = scyllastore.FieldSchema{Type: "text"}

	newSession := func(mode scyllastore.MigrationMode) Session {
		cfg := memoryConfig()
		cfg.Connection.Migration = mode
		s, err := NewMemorySession(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, s.SyncSchema(ctx, original))
		require.NoError(t, s.Insert(ctx, "users", scyllastore.Record{"id": gocql.TimeUUID(), "username": "a"}))
		return s
	}

	t.Run("safe", func(t *testing.T) {
		s := newSession(scyllastore.MigrationSafe)
		require.NoError(t, s.SyncSchema(ctx, original))
		require.Error(t, s.SyncSchema(ctx, evolved))
	})

	t.Run("alter keeps rows", func(t *testing.T) {
		s := newSession(scyllastore.MigrationAlter)
		require.NoError(t, s.SyncSchema(ctx, evolved))
		rows, err := s.Select(ctx, &scyllastore.Query{Table: "users"})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		require.NoError(t, s.Insert(ctx, "users", scyllastore.Record{"id": gocql.TimeUUID(), "nickname": "n"}))
	})

	t.Run("drop discards rows", func(t *testing.T) {
		s := newSession(scyllastore.MigrationDrop)
		require.NoError(t, s.SyncSchema(ctx, evolved))
		rows, err := s.Select(ctx, &scyllastore.Query{Table: "users"})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
