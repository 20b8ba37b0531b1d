package main

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/scyllastore"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "SCYLLASTORE"

// loadConfig layers an optional config file and SCYLLASTORE_* environment variables over
// the defaults, e.g. SCYLLASTORE_CONNECTION_KEYSPACE=accounts.
func loadConfig(path string) (*scyllastore.Config, error) {
	v := viper.New()
	setDefaults(v, scyllastore.DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := scyllastore.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables are seen by Unmarshal.
func setDefaults(v *viper.Viper, d *scyllastore.Config) {
	v.SetDefault("connection.driver", string(d.Connection.Driver))
	v.SetDefault("connection.contact_points", d.Connection.ContactPoints)
	v.SetDefault("connection.port", d.Connection.Port)
	v.SetDefault("connection.local_data_center", d.Connection.LocalDataCenter)
	v.SetDefault("connection.keyspace", d.Connection.Keyspace)
	v.SetDefault("connection.username", d.Connection.Username)
	v.SetDefault("connection.password", d.Connection.Password)
	v.SetDefault("connection.consistency", d.Connection.Consistency)
	v.SetDefault("connection.connect_timeout", d.Connection.ConnectTimeout)
	v.SetDefault("connection.read_timeout", d.Connection.ReadTimeout)
	v.SetDefault("connection.num_conns", d.Connection.NumConns)
	v.SetDefault("connection.disable_host_lookup", d.Connection.DisableHostLookup)
	v.SetDefault("connection.replication.class", d.Connection.Replication.Class)
	v.SetDefault("connection.replication.replication_factor", d.Connection.Replication.ReplicationFactor)
	v.SetDefault("connection.migration", string(d.Connection.Migration))
	v.SetDefault("query.page_size", d.Query.PageSize)
	v.SetDefault("bulk.max_concurrency", d.Bulk.MaxConcurrency)
	v.SetDefault("breaker.threshold", d.Breaker.Threshold)
	v.SetDefault("breaker.window", d.Breaker.Window)
	v.SetDefault("breaker.open_duration", d.Breaker.OpenDuration)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.enable_query_logging", d.Logging.EnableQueryLogging)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// newLogger builds the process logger from the logging settings.
func newLogger(cfg scyllastore.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc.Level = level
	return zc.Build()
}
