package internal

import (
	"context"

	"github.com/lychee-technology/scyllastore"
)

// Session executes single validated statements against the engine. Implementations must be
// safe for concurrent use; the adapter multiplexes every operation over one Session.
type Session interface {
	// Select runs a query and drains every row.
	Select(ctx context.Context, q *scyllastore.Query) ([]scyllastore.Record, error)
	// Insert writes a full row.
	Insert(ctx context.Context, table string, record scyllastore.Record) error
	// Update writes the patch to the row identified by key. It reports whether a conditional
	// (IfExists) update was applied; unconditional updates always report true.
	Update(ctx context.Context, table string, key scyllastore.Record, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (bool, error)
	// Delete removes the row identified by key.
	Delete(ctx context.Context, table string, key scyllastore.Record) error
	// SyncSchema reconciles keyspace, table and indexes with the schema.
	SyncSchema(ctx context.Context, schema *scyllastore.Schema) error
	Close()
}

// SessionFactory opens a Session from configuration.
type SessionFactory func(ctx context.Context, cfg *scyllastore.Config) (Session, error)
