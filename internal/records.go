package internal

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"go.uber.org/zap"
)

// recordStore implements the single-record operations over one table.
type recordStore struct {
	session    Session
	schema     *scyllastore.Schema
	translator *Translator
	ids        *IDGenerator
	breaker    *CircuitBreaker
	metrics    *Metrics
}

func newRecordStore(session Session, schema *scyllastore.Schema, breaker *CircuitBreaker, metrics *Metrics) *recordStore {
	return &recordStore{
		session:    session,
		schema:     schema,
		translator: NewTranslator(schema),
		ids:        NewIDGenerator(schema.IDType()),
		breaker:    breaker,
		metrics:    metrics,
	}
}

// run executes one operation behind the circuit breaker and records its outcome.
func (s *recordStore) run(op string, fn func() error) error {
	start := time.Now()
	if s.breaker.IsOpen() {
		err := scyllastore.NewCircuitOpenError(op)
		s.metrics.Observe(op, start, err)
		return err
	}
	err := fn()
	s.breaker.Record(err)
	s.metrics.Observe(op, start, err)
	return err
}

// readFailure wraps engine errors; adapter errors raised before reaching the engine pass
// through unchanged.
func readFailure(op string, err error) error {
	var adapterErr *scyllastore.AdapterError
	if errors.As(err, &adapterErr) {
		return err
	}
	return scyllastore.NewReadError(op, err)
}

func writeFailure(op string, err error) error {
	var adapterErr *scyllastore.AdapterError
	if errors.As(err, &adapterErr) {
		return err
	}
	return scyllastore.NewWriteError(op, err)
}

// Insert persists a copy of record under a freshly generated identifier and returns the
// stored form.
func (s *recordStore) Insert(ctx context.Context, record scyllastore.Record) (scyllastore.Record, error) {
	var stored scyllastore.Record
	err := s.run("insert", func() error {
		row := coerceRecord(s.schema, record)
		id := s.ids.Generate()
		row[scyllastore.IDField] = id
		now := nowMillis()
		for _, col := range s.schema.TimestampColumns() {
			row[col] = now
		}

		zap.S().Debugw("inserting record", "table", s.schema.TableName, "id", id)
		if err := s.session.Insert(ctx, s.schema.TableName, row); err != nil {
			return writeFailure("insert", err)
		}

		found, err := s.findRow(ctx, id)
		if err != nil {
			return readFailure("insert", err)
		}
		stored = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByID returns the record with the identifier, or nil when absent.
func (s *recordStore) FindByID(ctx context.Context, id any) (scyllastore.Record, error) {
	uid, err := coerceID(id)
	if err != nil {
		return nil, err
	}
	var found scyllastore.Record
	err = s.run("find_by_id", func() error {
		row, err := s.findRow(ctx, uid)
		if err != nil {
			return readFailure("find_by_id", err)
		}
		found = row
		return nil
	})
	return found, err
}

// FindByIDs returns the records among ids that exist. Result order is engine order.
func (s *recordStore) FindByIDs(ctx context.Context, ids []any) ([]scyllastore.Record, error) {
	if len(ids) == 0 {
		return []scyllastore.Record{}, nil
	}
	uids := make([]any, len(ids))
	for i, id := range ids {
		uid, err := coerceID(id)
		if err != nil {
			return nil, err
		}
		uids[i] = uid
	}

	var rows []scyllastore.Record
	err := s.run("find_by_ids", func() error {
		q := &scyllastore.Query{
			Table:          s.schema.TableName,
			Predicates:     []scyllastore.Predicate{{Field: scyllastore.IDField, Op: scyllastore.OpIn, Value: uids}},
			AllowFiltering: true,
		}
		found, err := s.session.Select(ctx, q)
		if err != nil {
			return readFailure("find_by_ids", err)
		}
		rows = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []scyllastore.Record{}
	}
	return rows, nil
}

// FindOne returns the first record matching q, or nil when nothing matches.
func (s *recordStore) FindOne(ctx context.Context, q map[string]any) (scyllastore.Record, error) {
	rows, err := s.find(ctx, "find_one", &scyllastore.FilterParams{Q: q, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Find returns every record matching params. No implicit limit is applied.
func (s *recordStore) Find(ctx context.Context, params *scyllastore.FilterParams) ([]scyllastore.Record, error) {
	return s.find(ctx, "find", params)
}

func (s *recordStore) find(ctx context.Context, op string, params *scyllastore.FilterParams) ([]scyllastore.Record, error) {
	q, err := s.translator.Translate(params)
	if err != nil {
		return nil, err
	}
	var rows []scyllastore.Record
	err = s.run(op, func() error {
		found, err := s.session.Select(ctx, q)
		if err != nil {
			return readFailure(op, err)
		}
		rows = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []scyllastore.Record{}
	}
	return rows, nil
}

// UpdateByID applies patch to the record and returns its canonical form. A missing record,
// or a conditional update that was not applied, yields nil.
func (s *recordStore) UpdateByID(ctx context.Context, id any, patch scyllastore.Record, opts *scyllastore.UpdateOptions) (scyllastore.Record, error) {
	uid, err := coerceID(id)
	if err != nil {
		return nil, err
	}

	changes := coerceRecord(s.schema, patch)
	delete(changes, scyllastore.IDField)
	if ts := s.schema.Options.Timestamps; ts != nil && ts.UpdatedAt != "" {
		changes[ts.UpdatedAt] = nowMillis()
	}

	// always IF EXISTS: a plain CQL update is an upsert and would bring back a row
	// deleted after it was resolved
	conditional := scyllastore.UpdateOptions{IfExists: true}
	if opts != nil {
		conditional.TTL = opts.TTL
	}

	var updated scyllastore.Record
	err = s.run("update_by_id", func() error {
		key := scyllastore.Record{scyllastore.IDField: uid}
		if !idIsWholeKey(s.schema) {
			existing, err := s.findRow(ctx, uid)
			if err != nil {
				return readFailure("update_by_id", err)
			}
			if existing == nil {
				return nil
			}
			key = keyOf(s.schema, existing)
		}

		if len(changes) > 0 {
			applied, err := s.session.Update(ctx, s.schema.TableName, key, changes, &conditional)
			if err != nil {
				return writeFailure("update_by_id", err)
			}
			if !applied {
				zap.S().Debugw("conditional update not applied", "table", s.schema.TableName, "id", uid)
				return nil
			}
		}

		row, err := s.findRow(ctx, uid)
		if err != nil {
			return readFailure("update_by_id", err)
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveByID deletes the record and returns the snapshot taken before deletion, or nil
// when it did not exist.
func (s *recordStore) RemoveByID(ctx context.Context, id any) (scyllastore.Record, error) {
	uid, err := coerceID(id)
	if err != nil {
		return nil, err
	}
	var removed scyllastore.Record
	err = s.run("remove_by_id", func() error {
		snapshot, err := s.findRow(ctx, uid)
		if err != nil {
			return readFailure("remove_by_id", err)
		}
		if snapshot == nil {
			return nil
		}
		if err := s.session.Delete(ctx, s.schema.TableName, keyOf(s.schema, snapshot)); err != nil {
			return writeFailure("remove_by_id", err)
		}
		removed = snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *recordStore) findRow(ctx context.Context, id gocql.UUID) (scyllastore.Record, error) {
	q := &scyllastore.Query{
		Table:          s.schema.TableName,
		Predicates:     []scyllastore.Predicate{{Field: scyllastore.IDField, Op: scyllastore.OpEq, Value: id}},
		Limit:          1,
		AllowFiltering: !idIsWholeKey(s.schema),
	}
	rows, err := s.session.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
