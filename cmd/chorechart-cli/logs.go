package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
)

// logStoreFlags selects the request log database. Unset flags fall back to
// the loaded config.
type logStoreFlags struct {
	configPath string
	driver     string
	dsn        string
}

func (f *logStoreFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (defaults to $CHORECHART_CONFIG)")
	cmd.Flags().StringVar(&f.driver, "driver", "", "request log driver: sqlite or postgres")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "request log DSN")
}

func (f *logStoreFlags) open(getenv func(string) string) (*requestlog.SQLWriter, error) {
	path := f.configPath
	if path == "" {
		path = getenv("CHORECHART_CONFIG")
	}
	cfg, err := chorechart.Load(path, getenv)
	if err != nil {
		return nil, err
	}
	driver, dsn := cfg.RequestLog.Driver, cfg.RequestLog.DSN
	if f.driver != "" {
		driver = f.driver
	}
	if f.dsn != "" {
		dsn = f.dsn
	}
	if driver == "" || driver == requestlog.DriverNone {
		return nil, fmt.Errorf("%w: request logging is disabled; set --driver or request_log.driver", errUsage)
	}
	return requestlog.Open(driver, dsn)
}

func newLogsCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect or prune the request log",
	}
	cmd.AddCommand(newLogsListCmd(getenv))
	cmd.AddCommand(newLogsPruneCmd(getenv))
	return cmd
}

func newLogsListCmd(getenv func(string) string) *cobra.Command {
	var (
		store   logStoreFlags
		limit   int
		offset  int
		outcome string
		backend string
		since   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List request log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := store.open(getenv)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			q := requestlog.Query{Limit: limit, Offset: offset, Outcome: outcome, Backend: backend}
			if since > 0 {
				t := time.Now().Add(-since)
				q.Since = &t
			}
			result, err := w.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	store.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome")
	cmd.Flags().StringVar(&backend, "backend", "", "filter by backend")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this age, e.g. 24h")
	return cmd
}

func newLogsPruneCmd(getenv func(string) string) *cobra.Command {
	var (
		store     logStoreFlags
		olderThan time.Duration
		outcome   string
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete request log entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("%w: --older-than must be positive", errUsage)
			}
			w, err := store.open(getenv)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			before := time.Now().Add(-olderThan)
			n, err := w.Delete(cmd.Context(), requestlog.MaintenanceQuery{Before: &before, Outcome: outcome})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries older than %s\n", n, before.UTC().Format(time.RFC3339))
			return nil
		},
	}
	store.register(cmd)
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this age")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only delete entries with this outcome")
	return cmd
}
