package main

import (
	"io"
	"os"
	"time"

	"github.com/nholik/craft-sentinel/internal/config"
	"github.com/nholik/craft-sentinel/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	fetchTimeout  = 10 * time.Minute
	watchDebounce = 2 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "craft-sentinel",
		Short:         "Keep a Minecraft server installed, configured and running",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newRunCmd(),
		newHookCmd(),
		newPlanCmd(),
		newStatusCmd(),
		newFlagsCmd(),
		newStopCmd(),
	)
	return root
}

// loadConfig reads the environment and builds a logger writing to w.
func loadConfig(w io.Writer) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.NewWriter(w, cfg.LogLevel), nil
}
