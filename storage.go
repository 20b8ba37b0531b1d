package scyllastore

import (
	"context"

	"github.com/gocql/gocql"
)

// Adapter is the uniform persistence surface a host service holds.
//
// Lookups that find nothing return a nil Record and a nil error.
type Adapter interface {
	// Lifecycle
	Init(host Host) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Single-record operations
	Insert(ctx context.Context, record Record) (Record, error)
	FindByID(ctx context.Context, id any) (Record, error)
	FindByIDs(ctx context.Context, ids []any) ([]Record, error)
	FindOne(ctx context.Context, q map[string]any) (Record, error)
	Find(ctx context.Context, params *FilterParams) ([]Record, error)
	UpdateByID(ctx context.Context, id any, patch Record, opts *UpdateOptions) (Record, error)
	RemoveByID(ctx context.Context, id any) (Record, error)

	// Multi-record operations
	InsertMany(ctx context.Context, records []Record) ([]Record, error)
	UpdateMany(ctx context.Context, q map[string]any, patch Record, opts *UpdateOptions) ([]Record, error)
	RemoveMany(ctx context.Context, q map[string]any) ([]Record, error)
	Count(ctx context.Context, params *FilterParams) (int, error)
	Clear(ctx context.Context) ([]Record, error)

	// Identifiers
	GenerateID() gocql.UUID
	StringIDToUUID(id string) (gocql.UUID, error)
}

// Host is the service the adapter is bound to.
type Host interface {
	// Name is the service name, used as model name when ModelName is empty.
	Name() string
	ModelName() string
	Schema() *Schema
}

// AfterConnectedHook is implemented by hosts that want a callback once the schema is in sync.
type AfterConnectedHook interface {
	AfterConnected(ctx context.Context) error
}

// StaticHost is a Host backed by fixed values.
type StaticHost struct {
	ServiceName string
	Model       string
	TableSchema *Schema
	OnConnected func(ctx context.Context) error
}

func (h *StaticHost) Name() string      { return h.ServiceName }
func (h *StaticHost) ModelName() string { return h.Model }
func (h *StaticHost) Schema() *Schema   { return h.TableSchema }

func (h *StaticHost) AfterConnected(ctx context.Context) error {
	if h.OnConnected == nil {
		return nil
	}
	return h.OnConnected(ctx)
}
