package e2e_harness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gocql/gocql"
	"github.com/lychee-technology/scyllastore"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestHarness holds a throwaway Scylla node used by E2E tests.
type TestHarness struct {
	ScyllaContainer testcontainers.Container
	ContactPoint    string
	Port            int
}

// StartScylla starts a single-node Scylla container and waits until it answers CQL.
// Caller is responsible for calling StopScylla.
func (h *TestHarness) StartScylla(ctx context.Context) error {
	req := testcontainers.ContainerRequest{
		Image:        "scylladb/scylla:6.2",
		ExposedPorts: []string{"9042/tcp"},
		Cmd:          []string{"--smp", "1", "--memory", "512M", "--overprovisioned", "1", "--developer-mode", "1"},
		WaitingFor:   wait.ForListeningPort("9042/tcp").WithStartupTimeout(120 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	h.ScyllaContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return err
	}
	mapped, err := container.MappedPort(ctx, "9042")
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return err
	}
	h.ContactPoint = host
	h.Port = port

	// the port opens before the native transport accepts queries
	deadline := time.Now().Add(90 * time.Second)
	for {
		err := h.probe()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scylla not ready: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (h *TestHarness) probe() error {
	cluster := gocql.NewCluster(h.ContactPoint)
	cluster.Port = h.Port
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.DisableInitialHostLookup = true
	session, err := cluster.CreateSession()
	if err != nil {
		return err
	}
	defer session.Close()
	var version string
	return session.Query("SELECT release_version FROM system.local").Scan(&version)
}

// Config returns an adapter configuration pointing at the container.
func (h *TestHarness) Config(keyspace string) *scyllastore.Config {
	cfg := scyllastore.DefaultConfig()
	cfg.Connection.ContactPoints = []string{h.ContactPoint}
	cfg.Connection.Port = h.Port
	cfg.Connection.Keyspace = keyspace
	cfg.Connection.LocalDataCenter = ""
	cfg.Connection.NumConns = 1
	cfg.Connection.DisableHostLookup = true
	cfg.Metrics.Enabled = false
	return cfg
}

// StopScylla terminates the container.
func (h *TestHarness) StopScylla(ctx context.Context) error {
	if h.ScyllaContainer != nil {
		if err := h.ScyllaContainer.Terminate(ctx); err != nil {
			return err
		}
		h.ScyllaContainer = nil
	}
	return nil
}
