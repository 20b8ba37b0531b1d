package main

import (
	"fmt"
	"os"

	"github.com/lychee-technology/scyllastore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	schemaPath string
	driverFlag string

	config *scyllastore.Config
)

var rootCmd = &cobra.Command{
	Use:   "scyllactl",
	Short: "Operate a table through the scyllastore adapter",
	Long: `scyllactl binds the adapter to a JSON table model and runs single-record and bulk
operations against a Scylla/Cassandra cluster (or the in-memory driver).

Configuration comes from --config and SCYLLASTORE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if driverFlag != "" {
			cfg.Connection.Driver = scyllastore.Driver(driverFlag)
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		logger, err := newLogger(cfg.Logging)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		config = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "path to the JSON table model")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "session driver override (gocql or memory)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(removeManyCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
