package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last published status, flags and open ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadState(cmd)
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), s, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newFlagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "List the persisted lifecycle flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadState(cmd)
			if err != nil {
				return err
			}
			for _, name := range s.Flags.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// loadState reads the store without touching the host.
func loadState(cmd *cobra.Command) (state.State, error) {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return state.State{}, err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return state.State{}, fmt.Errorf("open state store: %w", err)
	}
	defer closeStore()

	return store.Load(cmd.Context())
}

type statusOutput struct {
	Status state.StatusRecord `json:"status"`
	Flags  []string           `json:"flags"`
	Ports  []string           `json:"ports"`
}

func writeStatus(out io.Writer, s state.State, asJSON bool) error {
	view := statusOutput{Status: s.Status, Flags: s.Flags.Names(), Ports: s.Ports}
	if view.Ports == nil {
		view.Ports = []string{}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	if view.Status.Level == "" {
		fmt.Fprintln(out, "status: unknown")
	} else {
		fmt.Fprintf(out, "status: %s (%s)\n", view.Status.Level, view.Status.Message)
		if !view.Status.UpdatedAt.IsZero() {
			fmt.Fprintf(out, "updated: %s\n", view.Status.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	}
	fmt.Fprintf(out, "flags: %s\n", strings.Join(view.Flags, ", "))
	fmt.Fprintf(out, "ports: %s\n", strings.Join(view.Ports, ", "))
	return nil
}
