package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	chorechart "github.com/Rorschach3/chore-chart"
	"github.com/Rorschach3/chore-chart/providers"
)

func newAskCmd(getenv func(string) string) *cobra.Command {
	var (
		configPath string
		backend    string
		model      string
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Run one prompt through the assistant and print the JSON reply",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: a prompt is required", errUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = getenv("CHORECHART_CONFIG")
			}
			cfg, err := chorechart.Load(configPath, getenv)
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Upstream.Backend = backend
			}
			if model != "" {
				cfg.Upstream.Model = model
			}
			if err := chorechart.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx := cmd.Context()
			gen, err := providers.New(ctx, cfg.Upstream.Backend, cfg.Upstream.ProviderSettings())
			if err != nil {
				return err
			}
			a, err := chorechart.New(*cfg, gen)
			if err != nil {
				return err
			}

			body, err := json.Marshal(map[string]string{"prompt": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			res := a.Ask(ctx, body)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Envelope()); err != nil {
				return err
			}
			if res.StatusCode() >= 500 {
				return errFaultReply
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (defaults to $CHORECHART_CONFIG)")
	cmd.Flags().StringVar(&backend, "backend", "", "override upstream.backend")
	cmd.Flags().StringVar(&model, "model", "", "override upstream.model")
	return cmd
}
