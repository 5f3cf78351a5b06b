package main

import (
	"fmt"

	"github.com/spf13/cobra"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/internal/requestlog"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file (JSON/YAML)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := chorechart.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := chorechart.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Config is valid")
			fmt.Fprintf(out, "  Backend:     %s\n", cfg.Upstream.Backend)
			if cfg.Upstream.Model != "" {
				fmt.Fprintf(out, "  Model:       %s\n", cfg.Upstream.Model)
			}
			fmt.Fprintf(out, "  Cache TTL:   %s (sweep every %s)\n", cfg.Cache.TTL, cfg.Cache.SweepInterval)
			if cfg.RateLimit.Enabled {
				fmt.Fprintf(out, "  Rate limit:  %g req/s, burst %g\n", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
			} else {
				fmt.Fprintln(out, "  Rate limit:  disabled")
			}
			driver := cfg.RequestLog.Driver
			if driver == "" {
				driver = requestlog.DriverNone
			}
			fmt.Fprintf(out, "  Request log: %s\n", driver)
			admin := "disabled"
			if cfg.Admin.Token != "" || cfg.Admin.ReadOnlyToken != "" {
				admin = "enabled"
			}
			fmt.Fprintf(out, "  Admin API:   %s\n", admin)
			return nil
		},
	}
}
