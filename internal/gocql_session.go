package internal

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"go.uber.org/zap"
)

// gocqlSession executes statements on a Cassandra/Scylla cluster.
type gocqlSession struct {
	session    *gocql.Session
	keyspace   string
	pageSize   int
	conn       scyllastore.ConnectionConfig
	logQueries bool
}

// NewGocqlSession opens a cluster session and verifies it with a probe query. The session
// is not bound to the keyspace because schema synchronization may still have to create it.
func NewGocqlSession(ctx context.Context, config *scyllastore.Config) (Session, error) {
	cfg := &config.Connection
	cluster := gocql.NewCluster(cfg.ContactPoints...)
	cluster.Port = cfg.Port
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, scyllastore.NewConnectionError(fmt.Sprintf("invalid consistency %q", cfg.Consistency), err)
	}
	cluster.Consistency = consistency
	cluster.Timeout = cfg.ReadTimeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	cluster.DisableInitialHostLookup = cfg.DisableHostLookup
	if cfg.LocalDataCenter != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.LocalDataCenter))
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, scyllastore.NewConnectionError("failed to connect to cluster", err)
	}

	var version string
	if err := session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(&version); err != nil {
		session.Close()
		return nil, scyllastore.NewConnectionError("failed to probe cluster", err)
	}
	zap.S().Infow("connected to cluster", "contactPoints", cfg.ContactPoints, "keyspace", cfg.Keyspace, "releaseVersion", version)

	return &gocqlSession{
		session:    session,
		keyspace:   cfg.Keyspace,
		pageSize:   config.Query.PageSize,
		conn:       *cfg,
		logQueries: config.Logging.EnableQueryLogging,
	}, nil
}

func (s *gocqlSession) query(ctx context.Context, stmt string, args ...any) *gocql.Query {
	if s.logQueries {
		zap.S().Debugw("executing statement", "statement", stmt, "args", len(args))
	}
	return s.session.Query(stmt, args...).WithContext(ctx)
}

func (s *gocqlSession) Select(ctx context.Context, q *scyllastore.Query) ([]scyllastore.Record, error) {
	stmt, args, err := RenderSelect(s.keyspace, q)
	if err != nil {
		return nil, err
	}
	query := s.query(ctx, stmt, args...)
	if s.pageSize > 0 {
		query = query.PageSize(s.pageSize)
	}

	iter := query.Iter()
	var rows []scyllastore.Record
	for {
		row := make(map[string]any)
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, normalizeRow(row))
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gocqlSession) Insert(ctx context.Context, table string, record scyllastore.Record) error {
	stmt, args := RenderInsert(s.keyspace, table, record)
	return s.query(ctx, stmt, args...).Exec()
}

func (s *gocqlSession) Update(ctx context.Context, table string, key, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (bool, error) {
	stmt, args := RenderUpdate(s.keyspace, table, key, patch, opts)
	query := s.query(ctx, stmt, args...)
	if opts != nil && opts.IfExists {
		return query.MapScanCAS(make(map[string]any))
	}
	if err := query.Exec(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *gocqlSession) Delete(ctx context.Context, table string, key scyllastore.Record) error {
	stmt, args := RenderDelete(s.keyspace, table, key)
	return s.query(ctx, stmt, args...).Exec()
}

// SyncSchema creates the keyspace when absent, then reconciles the table according to the
// configured migration mode.
func (s *gocqlSession) SyncSchema(ctx context.Context, schema *scyllastore.Schema) error {
	if err := s.query(ctx, RenderCreateKeyspace(s.keyspace, s.conn.Replication)).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", s.keyspace, err)
	}

	existing, err := s.tableColumns(ctx, schema.TableName)
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", schema.TableName, err)
	}

	plan, err := planSchemaSync(s.conn.Migration, schema, existing)
	if err != nil {
		return err
	}
	for _, stmt := range plan.statements(s.keyspace, schema) {
		zap.S().Debugw("applying schema statement", "table", schema.TableName, "statement", stmt)
		if err := s.query(ctx, stmt).Exec(); err != nil {
			return fmt.Errorf("schema statement failed: %s: %w", stmt, err)
		}
	}
	if plan.createTable || plan.dropTable || len(plan.addColumns) > 0 {
		if err := s.session.AwaitSchemaAgreement(ctx); err != nil {
			return fmt.Errorf("schema agreement not reached for %s: %w", schema.TableName, err)
		}
	}
	return nil
}

// tableColumns returns the live column types of a table, or nil when it does not exist.
func (s *gocqlSession) tableColumns(ctx context.Context, table string) (map[string]string, error) {
	iter := s.query(ctx,
		"SELECT column_name, type FROM system_schema.columns WHERE keyspace_name = ? AND table_name = ?",
		s.keyspace, table).Iter()

	var cols map[string]string
	var name, typ string
	for iter.Scan(&name, &typ) {
		if cols == nil {
			cols = make(map[string]string)
		}
		cols[name] = typ
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return cols, nil
}

func (s *gocqlSession) Close() {
	s.session.Close()
}
