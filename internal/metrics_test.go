package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lychee-technology/scyllastore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.Observe("insert", time.Now(), nil)
	m.Observe("insert", time.Now(), nil)
	m.Observe("insert", time.Now(), errors.New("x"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("insert", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("insert", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	m.ObserveFanout("insert_many", 3)
	assert.Equal(t, 1, testutil.CollectAndCount(m.fanout))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("insert", time.Now(), nil)
	m.ObserveFanout("insert_many", 1)
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics("test", reg)
	second := NewMetrics("test", reg)

	second.Observe("find", time.Now(), nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.operations.WithLabelValues("find", "success")))
}

func TestMetrics_AdapterOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	a, err := NewAdapter(memoryConfig(), NewMemorySession, reg)
	require.NoError(t, err)
	require.NoError(t, a.Init(&scyllastore.StaticHost{ServiceName: "users", TableSchema: usersSchema()}))
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect(ctx)

	_, err = a.InsertMany(ctx, []scyllastore.Record{{"username": "a"}, {"username": "b"}})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.metrics.operations.WithLabelValues("connect", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(a.metrics.operations.WithLabelValues("insert", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.metrics.operations.WithLabelValues("insert_many", "success")))
}
