package internal

import (
	"context"
	"time"

	"github.com/lychee-technology/scyllastore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bulkOrchestrator implements multi-record operations as concurrent fan-out over the
// single-record operations. Match sets are resolved once, without isolation from
// concurrent writers.
type bulkOrchestrator struct {
	records        *recordStore
	maxConcurrency int
	metrics        *Metrics
}

func newBulkOrchestrator(records *recordStore, maxConcurrency int, metrics *Metrics) *bulkOrchestrator {
	return &bulkOrchestrator{
		records:        records,
		maxConcurrency: maxConcurrency,
		metrics:        metrics,
	}
}

// fanOut runs fn for every item concurrently and returns results in input order. The first
// failure cancels the shared context; work not yet started is skipped, work already in
// flight is awaited, and the first error is returned.
func fanOut[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *bulkOrchestrator) observe(op string, start time.Time, n int, err error) {
	b.metrics.ObserveFanout(op, n)
	b.metrics.Observe(op, start, err)
	if err != nil {
		zap.S().Warnw("bulk operation failed", "operation", op, "table", b.records.schema.TableName, "count", n, "error", err)
	}
}

// InsertMany inserts every record and returns the stored forms in input order. It is
// all-or-nothing from the caller's view: any failure fails the call, but rows persisted
// before the failure are not rolled back.
func (b *bulkOrchestrator) InsertMany(ctx context.Context, records []scyllastore.Record) ([]scyllastore.Record, error) {
	if len(records) == 0 {
		return []scyllastore.Record{}, nil
	}
	start := time.Now()
	out, err := fanOut(ctx, b.maxConcurrency, records, b.records.Insert)
	b.observe("insert_many", start, len(records), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMany patches every record matching q. Records that vanish between resolution and
// update are dropped from the result.
func (b *bulkOrchestrator) UpdateMany(ctx context.Context, q map[string]any, patch scyllastore.Record, opts *scyllastore.UpdateOptions) ([]scyllastore.Record, error) {
	start := time.Now()
	ids, err := b.resolve(ctx, q)
	if err != nil {
		b.observe("update_many", start, 0, err)
		return nil, err
	}
	out, err := fanOut(ctx, b.maxConcurrency, ids, func(ctx context.Context, id any) (scyllastore.Record, error) {
		return b.records.UpdateByID(ctx, id, patch, opts)
	})
	b.observe("update_many", start, len(ids), err)
	if err != nil {
		return nil, err
	}
	return compact(out), nil
}

// RemoveMany deletes every record matching q and returns the removed snapshots.
func (b *bulkOrchestrator) RemoveMany(ctx context.Context, q map[string]any) ([]scyllastore.Record, error) {
	start := time.Now()
	ids, err := b.resolve(ctx, q)
	if err != nil {
		b.observe("remove_many", start, 0, err)
		return nil, err
	}
	out, err := fanOut(ctx, b.maxConcurrency, ids, b.records.RemoveByID)
	b.observe("remove_many", start, len(ids), err)
	if err != nil {
		return nil, err
	}
	return compact(out), nil
}

// Count returns the number of records matching params, ignoring any limit.
func (b *bulkOrchestrator) Count(ctx context.Context, params *scyllastore.FilterParams) (int, error) {
	rows, err := b.records.find(ctx, "count", params.WithoutLimit())
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Clear removes every record of the table.
func (b *bulkOrchestrator) Clear(ctx context.Context) ([]scyllastore.Record, error) {
	return b.RemoveMany(ctx, map[string]any{})
}

// resolve snapshots the identifiers of the records matching q.
func (b *bulkOrchestrator) resolve(ctx context.Context, q map[string]any) ([]any, error) {
	rows, err := b.records.Find(ctx, &scyllastore.FilterParams{Q: q})
	if err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		if id := row.ID(); id != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func compact(records []scyllastore.Record) []scyllastore.Record {
	out := make([]scyllastore.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
