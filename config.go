package scyllastore

import (
	"strings"
	"time"
)

// Config consolidates adapter settings
type Config struct {
	Connection ConnectionConfig `json:"connection" mapstructure:"connection"`
	Query      QueryConfig      `json:"query" mapstructure:"query"`
	Bulk       BulkConfig       `json:"bulk" mapstructure:"bulk"`
	Breaker    BreakerConfig    `json:"breaker" mapstructure:"breaker"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
}

// Driver selects the session implementation.
type Driver string

const (
	DriverGocql  Driver = "gocql"
	DriverMemory Driver = "memory"
)

// MigrationMode controls how schema synchronization reconciles an existing table.
type MigrationMode string

const (
	// MigrationSafe creates missing keyspace/table/indexes and refuses to touch a table
	// whose columns differ from the schema.
	MigrationSafe MigrationMode = "safe"
	// MigrationAlter adds missing columns to an existing table.
	MigrationAlter MigrationMode = "alter"
	// MigrationDrop drops and recreates a table whose columns differ.
	MigrationDrop MigrationMode = "drop"
)

// ReplicationConfig is the keyspace replication used when the keyspace is created.
type ReplicationConfig struct {
	Class             string `json:"class" mapstructure:"class"`
	ReplicationFactor int    `json:"replicationFactor" mapstructure:"replication_factor"`
}

// ConnectionConfig contains cluster connection settings
type ConnectionConfig struct {
	Driver            Driver            `json:"driver" mapstructure:"driver"`
	ContactPoints     []string          `json:"contactPoints" mapstructure:"contact_points"`
	Port              int               `json:"port" mapstructure:"port"`
	LocalDataCenter   string            `json:"localDataCenter" mapstructure:"local_data_center"`
	Keyspace          string            `json:"keyspace" mapstructure:"keyspace"`
	Username          string            `json:"username" mapstructure:"username"`
	Password          string            `json:"password" mapstructure:"password"`
	Consistency       string            `json:"consistency" mapstructure:"consistency"`
	ConnectTimeout    time.Duration     `json:"connectTimeout" mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration     `json:"readTimeout" mapstructure:"read_timeout"`
	NumConns          int               `json:"numConns" mapstructure:"num_conns"`
	// DisableHostLookup connects only to the contact points, for clusters reached
	// through NAT or mapped ports.
	DisableHostLookup bool              `json:"disableHostLookup" mapstructure:"disable_host_lookup"`
	Replication       ReplicationConfig `json:"replication" mapstructure:"replication"`
	Migration         MigrationMode     `json:"migration" mapstructure:"migration"`
}

// QueryConfig contains query execution settings
type QueryConfig struct {
	// PageSize is the driver fetch size used while draining a result set.
	PageSize int `json:"pageSize" mapstructure:"page_size"`
}

// BulkConfig contains fan-out settings for multi-record operations
type BulkConfig struct {
	// MaxConcurrency bounds concurrent per-record operations; 0 means unbounded.
	MaxConcurrency int `json:"maxConcurrency" mapstructure:"max_concurrency"`
}

// BreakerConfig configures the engine circuit breaker. Threshold 0 disables it.
type BreakerConfig struct {
	Threshold    int           `json:"threshold" mapstructure:"threshold"`
	Window       time.Duration `json:"window" mapstructure:"window"`
	OpenDuration time.Duration `json:"openDuration" mapstructure:"open_duration"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level              string `json:"level" mapstructure:"level"`
	Format             string `json:"format" mapstructure:"format"`
	EnableQueryLogging bool   `json:"enableQueryLogging" mapstructure:"enable_query_logging"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Driver:          DriverGocql,
			ContactPoints:   []string{"127.0.0.1"},
			Port:            9042,
			LocalDataCenter: "datacenter1",
			Keyspace:        "test",
			Consistency:     "one",
			ConnectTimeout:  10 * time.Second,
			ReadTimeout:     60 * time.Second,
			NumConns:        2,
			Replication: ReplicationConfig{
				Class:             "SimpleStrategy",
				ReplicationFactor: 1,
			},
			Migration: MigrationSafe,
		},
		Query: QueryConfig{
			PageSize: 5000,
		},
		Breaker: BreakerConfig{
			Window:       30 * time.Second,
			OpenDuration: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "scyllastore",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Connection.Driver {
	case DriverGocql, DriverMemory:
	default:
		return &ConfigError{Field: "connection.driver", Message: "must be one of gocql, memory"}
	}

	if c.Connection.Driver == DriverGocql {
		if len(c.Connection.ContactPoints) == 0 {
			return &ConfigError{Field: "connection.contactPoints", Message: "at least one contact point is required"}
		}
		if c.Connection.Port <= 0 {
			return &ConfigError{Field: "connection.port", Message: "must be greater than 0"}
		}
	}

	if strings.TrimSpace(c.Connection.Keyspace) == "" {
		return &ConfigError{Field: "connection.keyspace", Message: "is required"}
	}

	switch c.Connection.Migration {
	case MigrationSafe, MigrationAlter, MigrationDrop:
	default:
		return &ConfigError{Field: "connection.migration", Message: "must be one of safe, alter, drop"}
	}

	if c.Connection.Replication.ReplicationFactor <= 0 {
		return &ConfigError{Field: "connection.replication.replicationFactor", Message: "must be greater than 0"}
	}

	if c.Bulk.MaxConcurrency < 0 {
		return &ConfigError{Field: "bulk.maxConcurrency", Message: "must not be negative"}
	}

	if c.Breaker.Threshold < 0 {
		return &ConfigError{Field: "breaker.threshold", Message: "must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
