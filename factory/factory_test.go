package factory

import (
	"context"
	"testing"

	"github.com/lychee-technology/scyllastore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersHost() *scyllastore.StaticHost {
	return &scyllastore.StaticHost{
		ServiceName: "users",
		TableSchema: &scyllastore.Schema{
			TableName: "users",
			Fields: map[string]scyllastore.FieldSchema{
				"id":       {Type: "uuid"},
				"username": {Type: "text"},
			},
			Key: scyllastore.KeySpec{Partition: []string{"id"}},
		},
	}
}

func TestNewAdapterForHost_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := scyllastore.DefaultConfig()
	cfg.Connection.Driver = scyllastore.DriverMemory

	adapter, err := NewAdapterForHost(cfg, usersHost(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(ctx))
	defer adapter.Disconnect(ctx)

	stored, err := adapter.Insert(ctx, scyllastore.Record{"username": "alice"})
	require.NoError(t, err)

	found, err := adapter.FindByID(ctx, stored.ID())
	require.NoError(t, err)
	assert.Equal(t, stored, found)
}

func TestNewAdapterWithConfig_UnknownDriver(t *testing.T) {
	cfg := scyllastore.DefaultConfig()
	cfg.Connection.Driver = "sqlite"

	_, err := NewAdapterWithConfig(cfg, prometheus.NewRegistry())
	require.Error(t, err)
	assert.True(t, scyllastore.IsConfigurationError(err))
}

func TestNewAdapterForHost_MissingSchema(t *testing.T) {
	cfg := scyllastore.DefaultConfig()
	cfg.Connection.Driver = scyllastore.DriverMemory

	_, err := NewAdapterForHost(cfg, &scyllastore.StaticHost{ServiceName: "users"}, prometheus.NewRegistry())
	require.Error(t, err)
	assert.True(t, scyllastore.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "failed to initialize adapter")
}

func TestNewAdapterWithConfig_NilConfig(t *testing.T) {
	adapter, err := NewAdapterWithConfig(nil, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}
