package main

import (
	"fmt"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the server without changing lifecycle flags",
		Long: `Stop the managed server. Flags are left untouched, so periodic passes do
not start it again; a configuration change, an upgrade or a manual start does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.Stop(cmd.Context(), cfg.ServiceName); err != nil {
				return err
			}
			if err := a.sink.ReportStatus(cmd.Context(), health.Waiting(health.MessageNotRunning)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stopped\n", cfg.ServiceName)
			return nil
		},
	}
}
