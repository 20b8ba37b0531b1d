package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lychee-technology/scyllastore"
	"github.com/lychee-technology/scyllastore/factory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	dataFlag         string
	queryFlag        string
	searchFlag       string
	searchFieldsFlag []string
	selectFlag       []string
	limitFlag        int
	ifExistsFlag     bool
	ttlFlag          int
)

// syncCmd connects once, which creates or reconciles keyspace, table and indexes
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the table with its model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema in sync")
			return nil
		})
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a record given as JSON with --data",
	RunE: func(cmd *cobra.Command, args []string) error {
		var record scyllastore.Record
		if err := decodeFlag("data", dataFlag, &record); err != nil {
			return err
		}
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			stored, err := a.Insert(ctx, record)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stored)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one record by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			record, err := a.FindByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "List records matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := filterParams()
		if err != nil {
			return err
		}
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			records, err := a.Find(ctx, params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count records matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := filterParams()
		if err != nil {
			return err
		}
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			n, err := a.Count(ctx, params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Patch one record with the JSON given in --data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch scyllastore.Record
		if err := decodeFlag("data", dataFlag, &patch); err != nil {
			return err
		}
		opts := &scyllastore.UpdateOptions{IfExists: ifExistsFlag, TTL: ttlFlag}
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			record, err := a.UpdateByID(ctx, args[0], patch, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove one record by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			record, err := a.RemoveByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		})
	},
}

var removeManyCmd = &cobra.Command{
	Use:   "remove-many",
	Short: "Remove every record matching --q",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q map[string]any
		if err := decodeFlag("q", queryFlag, &q); err != nil {
			return err
		}
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			removed, err := a.RemoveMany(ctx, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", len(removed))
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every record of the table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdapter(cmd.Context(), func(ctx context.Context, a scyllastore.Adapter) error {
			removed, err := a.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", len(removed))
			return nil
		})
	},
}

func init() {
	insertCmd.Flags().StringVar(&dataFlag, "data", "", "record as a JSON object")
	updateCmd.Flags().StringVar(&dataFlag, "data", "", "patch as a JSON object")
	updateCmd.Flags().BoolVar(&ifExistsFlag, "if-exists", false, "only update an existing record")
	updateCmd.Flags().IntVar(&ttlFlag, "ttl", 0, "time to live of the written cells in seconds")
	removeManyCmd.Flags().StringVar(&queryFlag, "q", "", "filter as a JSON object")

	for _, c := range []*cobra.Command{findCmd, countCmd} {
		c.Flags().StringVar(&queryFlag, "q", "", `filter as a JSON object, e.g. {"age":{"$gt":20}}`)
		c.Flags().StringVar(&searchFlag, "search", "", "free-text term matched against --search-fields")
		c.Flags().StringSliceVar(&searchFieldsFlag, "search-fields", nil, "fields the search term is matched against")
	}
	findCmd.Flags().IntVar(&limitFlag, "limit", 0, "maximum number of records")
	findCmd.Flags().StringSliceVar(&selectFlag, "select", nil, `output fields, e.g. "username as name"`)
}

func filterParams() (*scyllastore.FilterParams, error) {
	params := &scyllastore.FilterParams{
		Search:       searchFlag,
		SearchFields: searchFieldsFlag,
		Limit:        limitFlag,
		Select:       selectFlag,
	}
	if err := decodeFlag("q", queryFlag, &params.Q); err != nil {
		return nil, err
	}
	return params, nil
}

func decodeFlag(name, raw string, target any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	return nil
}

// withAdapter connects an adapter bound to the --schema model for the duration of fn.
func withAdapter(ctx context.Context, fn func(context.Context, scyllastore.Adapter) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if schemaPath == "" {
		return fmt.Errorf("--schema is required")
	}
	schema, err := scyllastore.LoadSchemaFile(schemaPath)
	if err != nil {
		return err
	}

	host := &scyllastore.StaticHost{ServiceName: "scyllactl", Model: schema.TableName, TableSchema: schema}
	adapter, err := factory.NewAdapterForHost(config, host, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Disconnect(ctx)

	return fn(ctx, adapter)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
