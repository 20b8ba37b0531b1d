package factory

import (
	"fmt"

	"github.com/lychee-technology/scyllastore"
	"github.com/lychee-technology/scyllastore/internal"
	"github.com/prometheus/client_golang/prometheus"
)

// NewAdapterWithConfig creates an uninitialized Adapter for the configured driver.
// This is the primary way for external projects to create an Adapter instance.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/scyllastore"
//	    "github.com/lychee-technology/scyllastore/factory"
//	)
//
//	config := scyllastore.DefaultConfig()
//	config.Connection.Keyspace = "accounts"
//	adapter, err := factory.NewAdapterWithConfig(config, prometheus.DefaultRegisterer)
//	if err != nil {
//	    // handle error
//	}
//	if err := adapter.Init(host); err != nil {
//	    // handle error
//	}
//	if err := adapter.Connect(ctx); err != nil {
//	    // handle error
//	}
//
// A nil registerer registers metrics on the default Prometheus registry; metrics are
// skipped entirely when config.Metrics.Enabled is false.
func NewAdapterWithConfig(config *scyllastore.Config, registerer prometheus.Registerer) (scyllastore.Adapter, error) {
	if config == nil {
		config = scyllastore.DefaultConfig()
	}
	sessionFactory, err := sessionFactoryFor(config.Connection.Driver)
	if err != nil {
		return nil, err
	}
	return internal.NewAdapter(config, sessionFactory, registerer)
}

// NewAdapterForHost creates an Adapter and binds it to host. The adapter still has to be
// connected.
func NewAdapterForHost(config *scyllastore.Config, host scyllastore.Host, registerer prometheus.Registerer) (scyllastore.Adapter, error) {
	adapter, err := NewAdapterWithConfig(config, registerer)
	if err != nil {
		return nil, err
	}
	if err := adapter.Init(host); err != nil {
		return nil, fmt.Errorf("failed to initialize adapter: %w", err)
	}
	return adapter, nil
}

func sessionFactoryFor(driver scyllastore.Driver) (internal.SessionFactory, error) {
	switch driver {
	case scyllastore.DriverGocql, "":
		return internal.NewGocqlSession, nil
	case scyllastore.DriverMemory:
		return internal.NewMemorySession, nil
	default:
		return nil, scyllastore.NewConfigInvalidError(fmt.Sprintf("unknown driver %q", driver)).WithField("connection.driver")
	}
}
