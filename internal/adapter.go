package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// State is the adapter lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Adapter is the facade a host service holds. It owns the session lifecycle and routes
// every operation to the single-record or bulk layer.
type Adapter struct {
	config  *scyllastore.Config
	factory SessionFactory
	metrics *Metrics
	breaker *CircuitBreaker

	mu         sync.RWMutex
	state      State
	connecting bool
	host       scyllastore.Host
	schema     *scyllastore.Schema
	modelName  string
	ids        *IDGenerator
	session    Session
	records    *recordStore
	bulk       *bulkOrchestrator
}

var _ scyllastore.Adapter = (*Adapter)(nil)

// NewAdapter creates an uninitialized adapter. A nil config uses DefaultConfig; a nil
// registerer registers metrics on the default Prometheus registry.
func NewAdapter(config *scyllastore.Config, factory SessionFactory, reg prometheus.Registerer) (*Adapter, error) {
	if config == nil {
		config = scyllastore.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, scyllastore.NewConfigInvalidError(err.Error()).WithCause(err)
	}
	if factory == nil {
		return nil, scyllastore.NewConfigInvalidError("session factory is required")
	}

	var metrics *Metrics
	if config.Metrics.Enabled {
		metrics = NewMetrics(config.Metrics.Namespace, reg)
	}
	return &Adapter{
		config:  config,
		factory: factory,
		metrics: metrics,
		breaker: newBreakerFromConfig(config.Breaker),
		state:   StateUninitialized,
	}, nil
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// ModelName returns the bound model name.
func (a *Adapter) ModelName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.modelName
}

// Init binds the host's schema and model name.
func (a *Adapter) Init(host scyllastore.Host) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateConnected {
		return scyllastore.NewInvalidStateError("init", a.state.String())
	}
	if a.connecting {
		return scyllastore.NewInvalidStateError("init", "connecting")
	}
	if host == nil || host.Schema() == nil {
		return scyllastore.NewMissingSchemaError()
	}
	name := host.ModelName()
	if name == "" {
		name = host.Name()
	}
	if name == "" {
		return scyllastore.NewMissingSchemaError().WithField("model")
	}
	schema := host.Schema()
	if err := schema.Validate(); err != nil {
		return err
	}

	a.host = host
	a.schema = schema
	a.modelName = name
	a.ids = NewIDGenerator(schema.IDType())
	a.state = StateInitialized
	zap.S().Debugw("adapter initialized", "model", name, "table", schema.TableName)
	return nil
}

// Connect opens the session, synchronizes the schema and then runs the host's
// AfterConnected hook. The session is opened without holding the adapter lock; a
// concurrent Connect or Init is refused until it settles. On any failure, the hook
// included, the session is closed and the adapter returns to its previous state.
func (a *Adapter) Connect(ctx context.Context) error {
	start := time.Now()
	a.mu.Lock()
	if a.connecting {
		a.mu.Unlock()
		return scyllastore.NewInvalidStateError("connect", "connecting")
	}
	if a.state != StateInitialized && a.state != StateDisconnected {
		state := a.state
		a.mu.Unlock()
		return scyllastore.NewInvalidStateError("connect", state.String())
	}
	a.connecting = true
	prev := a.state
	config, schema, host, model := a.config, a.schema, a.host, a.modelName
	a.mu.Unlock()

	session, err := a.open(ctx, config, schema)
	if err != nil {
		a.mu.Lock()
		a.connecting = false
		a.mu.Unlock()
		a.metrics.Observe("connect", start, err)
		return err
	}

	a.mu.Lock()
	a.connecting = false
	a.session = session
	a.records = newRecordStore(session, schema, a.breaker, a.metrics)
	a.bulk = newBulkOrchestrator(a.records, config.Bulk.MaxConcurrency, a.metrics)
	a.state = StateConnected
	a.mu.Unlock()

	a.metrics.Observe("connect", start, nil)
	zap.S().Infow("adapter connected", "model", model, "keyspace", config.Connection.Keyspace, "table", schema.TableName)

	if hook, ok := host.(scyllastore.AfterConnectedHook); ok {
		if err := hook.AfterConnected(ctx); err != nil {
			a.rollback(session, prev)
			zap.S().Warnw("after connected hook failed, connection rolled back", "model", model, "error", err)
			return err
		}
	}
	return nil
}

func (a *Adapter) open(ctx context.Context, config *scyllastore.Config, schema *scyllastore.Schema) (Session, error) {
	session, err := a.factory(ctx, config)
	if err != nil {
		return nil, connectFailure("failed to open session", err)
	}
	if err := session.SyncSchema(ctx, schema); err != nil {
		session.Close()
		return nil, connectFailure("schema synchronization failed", err)
	}
	return session, nil
}

// rollback undoes a published connection unless a Disconnect already replaced it.
func (a *Adapter) rollback(session Session, prev State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != session {
		return
	}
	session.Close()
	a.session = nil
	a.records = nil
	a.bulk = nil
	a.state = prev
}

func connectFailure(msg string, err error) error {
	var adapterErr *scyllastore.AdapterError
	if errors.As(err, &adapterErr) {
		return err
	}
	return scyllastore.NewConnectionError(msg, err)
}

// Disconnect closes the session. Calling it when not connected is a no-op.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected {
		return nil
	}
	if a.session != nil {
		a.session.Close()
	}
	a.session = nil
	a.records = nil
	a.bulk = nil
	a.state = StateDisconnected
	zap.S().Infow("adapter disconnected", "model", a.modelName)
	return nil
}

func (a *Adapter) active(op string) (*recordStore, *bulkOrchestrator, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateConnected {
		return nil, nil, scyllastore.NewNotConnectedError(op, a.state.String())
	}
	return a.records, a.bulk, nil
}

func (a *Adapter) Insert(ctx context.Context, record scyllastore.Record) (scyllastore.Record, error) {
	records, _, err := a.active("insert")
	if err != nil {
		return nil, err
	}
	return records.Insert(ctx, record)
}

func (a *Adapter) FindByID(ctx context.Context, id any) (scyllastore.Record, error) {
	records, _, err := a.active("find_by_id")
	if err != nil {
		return nil, err
	}
	return records.FindByID(ctx, id)
}

func (a *Adapter) FindByIDs(ctx context.Context, ids []any) ([]scyllastore.Record, error) {
	records, _, err := a.active("find_by_ids")
	if err != nil {
		return nil, err
	}
	return records.FindByIDs(ctx, ids)
}

func (a *Adapter) FindOne(ctx context.Context, q map[string]any) (scyllastore.Record, error) {
	records, _, err := a.active("find_one")
	if err != nil {
		return nil, err
	}
	return records.FindOne(ctx, q)
}

func (a *Adapter) Find(ctx context.Context, params *scyllastore.FilterParams) ([]scyllastore.Record, error) {
	records, _, err := a.active("find")
	if err != nil {
		return nil, err
	}
	return records.Find(ctx, params)
}

func (a *Adapter) UpdateByID(ctx context.Context, id any, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (scyllastore.Record, error) {
	records, _, err := a.active("update_by_id")
	if err != nil {
		return nil, err
	}
	return records.UpdateByID(ctx, id, patch, opts)
}

func (a *Adapter) RemoveByID(ctx context.Context, id any) (scyllastore.Record, error) {
	records, _, err := a.active("remove_by_id")
	if err != nil {
		return nil, err
	}
	return records.RemoveByID(ctx, id)
}

func (a *Adapter) InsertMany(ctx context.Context, records []scyllastore.Record) ([]scyllastore.Record, error) {
	_, bulk, err := a.active("insert_many")
	if err != nil {
		return nil, err
	}
	return bulk.InsertMany(ctx, records)
}

func (a *Adapter) UpdateMany(ctx context.Context, q map[string]any, patch scyllastore.Record, opts *scyllastore.UpdateOptions) ([]scyllastore.Record, error) {
	_, bulk, err := a.active("update_many")
	if err != nil {
		return nil, err
	}
	return bulk.UpdateMany(ctx, q, patch, opts)
}

func (a *Adapter) RemoveMany(ctx context.Context, q map[string]any) ([]scyllastore.Record, error) {
	_, bulk, err := a.active("remove_many")
	if err != nil {
		return nil, err
	}
	return bulk.RemoveMany(ctx, q)
}

func (a *Adapter) Count(ctx context.Context, params *scyllastore.FilterParams) (int, error) {
	_, bulk, err := a.active("count")
	if err != nil {
		return 0, err
	}
	return bulk.Count(ctx, params)
}

func (a *Adapter) Clear(ctx context.Context) ([]scyllastore.Record, error) {
	_, bulk, err := a.active("clear")
	if err != nil {
		return nil, err
	}
	return bulk.Clear(ctx)
}

// GenerateID returns a fresh identifier suited to the bound identifier column.
func (a *Adapter) GenerateID() gocql.UUID {
	a.mu.RLock()
	ids := a.ids
	a.mu.RUnlock()
	return ids.Generate()
}

// StringIDToUUID parses the textual identifier form.
func (a *Adapter) StringIDToUUID(id string) (gocql.UUID, error) {
	a.mu.RLock()
	ids := a.ids
	a.mu.RUnlock()
	return ids.Parse(id)
}

// EntityToObject returns the record unchanged; records are already plain maps.
func (a *Adapter) EntityToObject(entity scyllastore.Record) scyllastore.Record {
	return entity
}

// BeforeSaveTransformID returns the record unchanged; identifiers are stored natively.
func (a *Adapter) BeforeSaveTransformID(entity scyllastore.Record, _ string) scyllastore.Record {
	return entity
}

// AfterRetrieveTransformID returns the record unchanged.
func (a *Adapter) AfterRetrieveTransformID(entity scyllastore.Record, _ string) scyllastore.Record {
	return entity
}
