package main

import (
	"fmt"
	"strings"

	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/spf13/cobra"
)

func triggerNames() string {
	names := make([]string, 0, len(engine.Triggers))
	for _, t := range engine.Triggers {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func parseTriggerArg(args []string) (engine.Trigger, error) {
	if len(args) == 0 {
		return engine.TriggerUpdateStatus, nil
	}
	return engine.ParseTrigger(args[0])
}

func newHookCmd() *cobra.Command {
	var entryPoint bool

	cmd := &cobra.Command{
		Use:   "hook [trigger]",
		Short: "Run a single reconciliation pass",
		Long: fmt.Sprintf(`Run one reconciliation pass for a lifecycle trigger and exit.

Triggers: %s. Defaults to update-status.
With --entry-point the handler for the trigger category runs directly.`, triggerNames()),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := parseTriggerArg(args)
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var planner func(engine.Trigger, engine.Input) engine.Plan
			if entryPoint {
				planner = engine.ForTrigger
			}

			a, err := newApp(cmd.Context(), cfg, logger, planner)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.runner.RunOnce(cmd.Context(), trigger)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pass %s (%s): %d of %d actions\n", result.PassID, result.Trigger, result.Executed, len(result.Plan.Actions))
			return err
		},
	}

	cmd.Flags().BoolVar(&entryPoint, "entry-point", false, "run the trigger's entry point instead of the full handler table")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var entryPoint bool

	cmd := &cobra.Command{
		Use:   "plan [trigger]",
		Short: "Show the actions a pass would take, without running them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := parseTriggerArg(args)
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var planner func(engine.Trigger, engine.Input) engine.Plan
			if entryPoint {
				planner = engine.ForTrigger
			}

			a, err := newApp(cmd.Context(), cfg, logger, planner)
			if err != nil {
				return err
			}
			defer a.close()

			plan, input, err := a.runner.Plan(cmd.Context(), trigger)
			if err != nil {
				return err
			}
			writePlan(cmd, plan, input)
			return nil
		},
	}

	cmd.Flags().BoolVar(&entryPoint, "entry-point", false, "plan the trigger's entry point instead of the full handler table")
	return cmd
}

func writePlan(cmd *cobra.Command, plan engine.Plan, input engine.Input) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "flags: %s\n", strings.Join(state.Flags(input.Flags).Names(), ", "))
	fmt.Fprintf(out, "resource ready: %t, service running: %t\n", input.ResourceReady, input.ServiceRunning)
	if changed := input.Config.ChangedNames(); len(changed) > 0 {
		fmt.Fprintf(out, "changed options: %s\n", strings.Join(changed, ", "))
	}
	if plan.Empty() {
		fmt.Fprintln(out, "nothing to do")
		return
	}
	fmt.Fprintf(out, "handlers: %s\n", strings.Join(plan.Handlers, ", "))
	for i, action := range plan.Strings() {
		fmt.Fprintf(out, "%2d. %s\n", i+1, action)
	}
}
