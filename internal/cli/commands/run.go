package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semabridge/internal/engine"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Translate all models or specific models",
		Long: `Translate semantic models into data-model artifacts in dependency order.

By default, translates all discovered models. Use --select to translate
specific models. Use --downstream to also translate models that depend on
the selected models.`,
		Example: `  # Translate all models
  semabridge run

  # Translate specific models
  semabridge run --select orders,customers

  # Translate a model and its downstream dependents
  semabridge run --select orders --downstream`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of models to translate")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	startTime := time.Now()

	discovery, err := cc.Engine.Discover()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d models in %d files\n", discovery.ModelsTotal, discovery.FilesTotal)
	for _, de := range discovery.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", de.Message)
	}

	var result *engine.RunResult
	if opts.Select != "" {
		selected := strings.Split(opts.Select, ",")
		for i := range selected {
			selected[i] = strings.TrimSpace(selected[i])
		}
		result, err = cc.Engine.RunSelected(ctx, cc.Cfg.Environment, selected, opts.Downstream)
	} else {
		result, err = cc.Engine.Run(ctx, cc.Cfg.Environment)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", result.Run.ID, result.Run.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "Translated %d models in %d layers (%d deferred metrics)\n",
		len(result.Translated), len(result.Layers), len(result.Deferred))
	fmt.Fprintf(cmd.OutOrStdout(), "Completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	// Per-model failures are reported but do not fail the command as a
	// whole; successfully translated models stay published.
	if rerr := result.Err(); rerr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Some models failed:\n%v\n", rerr)
	}
	return nil
}
