package internal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lychee-technology/scyllastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersBulk(t *testing.T, session Session, limit int) *bulkOrchestrator {
	t.Helper()
	return newBulkOrchestrator(newRecordStore(session, usersSchema(), nil, nil), limit, nil)
}

func usernames(rows []scyllastore.Record) []string {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i], _ = r["username"].(string)
	}
	return names
}

func TestFanOut_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out, err := fanOut(context.Background(), 0, items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, out)
}

func TestFanOut_FirstErrorSkipsPendingWork(t *testing.T) {
	boom := errors.New("boom")
	var started atomic.Int32

	_, err := fanOut(context.Background(), 1, []int{0, 1, 2, 3}, func(_ context.Context, n int) (int, error) {
		started.Add(1)
		if n == 1 {
			return 0, boom
		}
		return n, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), started.Load())
}

func TestFanOut_AwaitsInFlightWork(t *testing.T) {
	boom := errors.New("boom")
	var finished atomic.Int32
	running := make(chan struct{})

	_, err := fanOut(context.Background(), 0, []int{0, 1}, func(_ context.Context, n int) (int, error) {
		if n == 0 {
			<-running
			return 0, boom
		}
		close(running)
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
		return n, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), finished.Load(), "in-flight work completes before the call returns")
}

func TestFanOut_RespectsLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	items := make([]int, 12)

	_, err := fanOut(context.Background(), 3, items, func(_ context.Context, _ int) (int, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestBulk_InsertMany(t *testing.T) {
	ctx := context.Background()
	bulk := newUsersBulk(t, newSyncedMemorySession(t, usersSchema()), 0)

	out, err := bulk.InsertMany(ctx, []scyllastore.Record{
		{"username": "a"}, {"username": "b"}, {"username": "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, usernames(out))
	for _, r := range out {
		assert.NotNil(t, r.ID())
	}

	out, err = bulk.InsertMany(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestBulk_InsertManyFailsOnFirstError(t *testing.T) {
	ctx := context.Background()
	schema := usersSchema()
	engineErr := errors.New("write timeout")
	inner := newSyncedMemorySession(t, schema)
	session := &failingSession{
		Session: inner,
		insertErr: func(r scyllastore.Record) error {
			if r["username"] == "bad" {
				return engineErr
			}
			return nil
		},
	}
	bulk := newUsersBulk(t, session, 1)

	out, err := bulk.InsertMany(ctx, []scyllastore.Record{
		{"username": "a"}, {"username": "bad"}, {"username": "c"},
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, scyllastore.IsWriteError(err))
	assert.ErrorIs(t, err, engineErr)

	// rows written before the failure stay; later work never starts
	rows, err := inner.Select(ctx, &scyllastore.Query{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, usernames(rows))
}

// vanishing deletes victim right before its per-record lookup, after the match set has been
// resolved.
func vanishing(inner Session, victim any) func(q *scyllastore.Query) error {
	var once sync.Once
	return func(q *scyllastore.Query) error {
		for _, p := range q.PredicatesFor(scyllastore.IDField) {
			if p.Op == scyllastore.OpEq && p.Value == victim {
				once.Do(func() {
					_ = inner.Delete(context.Background(), "users", scyllastore.Record{scyllastore.IDField: victim})
				})
			}
		}
		return nil
	}
}

func TestBulk_UpdateMany(t *testing.T) {
	ctx := context.Background()
	inner := newSyncedMemorySession(t, usersSchema())
	session := &failingSession{Session: inner}
	bulk := newUsersBulk(t, session, 0)

	seeded, err := bulk.InsertMany(ctx, []scyllastore.Record{
		{"username": "a", "age": 20}, {"username": "b", "age": 20}, {"username": "c", "age": 30},
	})
	require.NoError(t, err)
	session.selectErr = vanishing(inner, seeded[1].ID())

	out, err := bulk.UpdateMany(ctx, map[string]any{"age": 20}, scyllastore.Record{"email": "x@y"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, usernames(out))
	assert.Equal(t, "x@y", out[0]["email"])

	untouched, err := bulk.records.FindByID(ctx, seeded[2].ID())
	require.NoError(t, err)
	assert.NotContains(t, untouched, "email")
}

func TestBulk_RemoveMany(t *testing.T) {
	ctx := context.Background()
	inner := newSyncedMemorySession(t, usersSchema())
	session := &failingSession{Session: inner}
	bulk := newUsersBulk(t, session, 2)

	seeded, err := bulk.InsertMany(ctx, []scyllastore.Record{
		{"username": "a", "age": 20}, {"username": "b", "age": 20}, {"username": "c", "age": 30},
	})
	require.NoError(t, err)
	session.selectErr = vanishing(inner, seeded[0].ID())

	out, err := bulk.RemoveMany(ctx, map[string]any{"age": 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, usernames(out))

	n, err := bulk.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBulk_RemoveManyFailure(t *testing.T) {
	ctx := context.Background()
	engineErr := errors.New("unavailable")
	session := &failingSession{Session: newSyncedMemorySession(t, usersSchema())}
	bulk := newUsersBulk(t, session, 0)

	_, err := bulk.InsertMany(ctx, []scyllastore.Record{{"username": "a"}, {"username": "b"}})
	require.NoError(t, err)
	session.deleteErr = func(scyllastore.Record) error { return engineErr }

	out, err := bulk.RemoveMany(ctx, map[string]any{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, engineErr)
}

func TestBulk_CountAndClear(t *testing.T) {
	ctx := context.Background()
	bulk := newUsersBulk(t, newSyncedMemorySession(t, usersSchema()), 0)

	_, err := bulk.InsertMany(ctx, []scyllastore.Record{
		{"username": "a", "age": 1}, {"username": "b", "age": 2}, {"username": "c", "age": 3},
	})
	require.NoError(t, err)

	n, err := bulk.Count(ctx, &scyllastore.FilterParams{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "count ignores the limit")

	n, err = bulk.Count(ctx, &scyllastore.FilterParams{Q: map[string]any{"age": map[string]any{"$gte": 2}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := bulk.Clear(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	n, err = bulk.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	removed, err = bulk.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
