package internal

import (
	"testing"

	"github.com/lychee-technology/scyllastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdentifier("users"))
	assert.Equal(t, `"User Name"`, quoteIdentifier("User Name"))
	assert.Equal(t, `"a""b"`, quoteIdentifier(`a"b`))
}

func TestCQLOperator(t *testing.T) {
	tests := []struct {
		op   scyllastore.Operator
		want string
	}{
		{scyllastore.OpEq, "="},
		{scyllastore.OpIn, "IN"},
		{scyllastore.OpGt, ">"},
		{scyllastore.OpGte, ">="},
		{scyllastore.OpLt, "<"},
		{scyllastore.OpLte, "<="},
		{scyllastore.OpLike, "LIKE"},
		{scyllastore.Operator("$contains"), "CONTAINS"},
		{scyllastore.Operator("$contains_key"), "CONTAINS KEY"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, cqlOperator(tt.op))
		})
	}
}

func TestRenderSelect(t *testing.T) {
	tr := NewTranslator(usersSchema())
	q, err := tr.Translate(&scyllastore.FilterParams{
		Q: map[string]any{
			"age":      map[string]any{"$gt": 20, "$lte": 24},
			"username": "alice",
			"$groupby": []any{"id"},
		},
		Limit:  10,
		Select: []string{"id", "username as name"},
	})
	require.NoError(t, err)

	stmt, args, err := RenderSelect("test", q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "username" AS "name" FROM "test"."users" WHERE "age" > ? AND "age" <= ? AND "username" = ? GROUP BY "id" LIMIT 10 ALLOW FILTERING`,
		stmt)
	assert.Equal(t, []any{int64(20), int64(24), "alice"}, args)
}

func TestRenderSelect_Minimal(t *testing.T) {
	stmt, args, err := RenderSelect("", &scyllastore.Query{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, stmt)
	assert.Empty(t, args)

	_, _, err = RenderSelect("ks", &scyllastore.Query{})
	require.Error(t, err)
}

func TestRenderInsert(t *testing.T) {
	stmt, args := RenderInsert("ks", "users", scyllastore.Record{"username": "bob", "id": "x", "age": 3})
	assert.Equal(t, `INSERT INTO "ks"."users" ("age", "id", "username") VALUES (?, ?, ?)`, stmt)
	assert.Equal(t, []any{3, "x", "bob"}, args)
}

func TestRenderUpdate(t *testing.T) {
	stmt, args := RenderUpdate("ks", "users",
		scyllastore.Record{"id": "x"},
		scyllastore.Record{"username": "bob", "age": 4},
		&scyllastore.UpdateOptions{IfExists: true, TTL: 60})
	assert.Equal(t, `UPDATE "ks"."users" USING TTL 60 SET "age" = ?, "username" = ? WHERE "id" = ? IF EXISTS`, stmt)
	assert.Equal(t, []any{4, "bob", "x"}, args)

	stmt, _ = RenderUpdate("ks", "users", scyllastore.Record{"id": "x"}, scyllastore.Record{"age": 4}, nil)
	assert.Equal(t, `UPDATE "ks"."users" SET "age" = ? WHERE "id" = ?`, stmt)
}

func TestRenderDelete(t *testing.T) {
	stmt, args := RenderDelete("ks", "events", scyllastore.Record{"tenant": "t1", "id": "x"})
	assert.Equal(t, `DELETE FROM "ks"."events" WHERE "id" = ? AND "tenant" = ?`, stmt)
	assert.Equal(t, []any{"x", "t1"}, args)
}

func TestRenderDDL(t *testing.T) {
	assert.Equal(t,
		`CREATE KEYSPACE IF NOT EXISTS "ks" WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`,
		RenderCreateKeyspace("ks", scyllastore.ReplicationConfig{ReplicationFactor: 1}))

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "ks"."users" ("age" int, "created_at" timestamp, "email" text, "id" uuid, "updated_at" timestamp, "username" text, PRIMARY KEY ("id"))`,
		RenderCreateTable("ks", usersSchema()))

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "ks"."events" ("id" timeuuid, "kind" text, "tenant" text, PRIMARY KEY ("tenant", "id"))`,
		RenderCreateTable("ks", eventsSchema()))

	composite := eventsSchema()
	composite.Key = scyllastore.KeySpec{Partition: []string{"tenant", "kind"}, Clustering: []string{"id"}}
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "ks"."events" ("id" timeuuid, "kind" text, "tenant" text, PRIMARY KEY (("tenant", "kind"), "id"))`,
		RenderCreateTable("ks", composite))

	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "users_username_idx" ON "ks"."users" ("username")`,
		RenderCreateIndex("ks", "users", "username"))
	assert.Equal(t,
		`ALTER TABLE "ks"."users" ADD "nickname" text`,
		RenderAddColumn("ks", "users", scyllastore.ColumnDef{Name: "nickname", Type: "text"}))
	assert.Equal(t, `DROP TABLE IF EXISTS "ks"."users"`, RenderDropTable("ks", "users"))
}
