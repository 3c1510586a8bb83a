package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/autopilot-backend/internal/app"
	types "github.com/yungbote/autopilot-backend/internal/domain"
)

type completeOptions struct {
	*RootOptions
	timeout time.Duration
}

// NewCompleteCommand runs the completion pipeline for one execution in the
// foreground. It takes the same orchestration claim as the webhook.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &completeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete <execution-id>",
		Short: "Run the video pipeline for a completed execution",
		Long: `Claim a COMPLETED run and execute the insights, report, prompt and
video steps inline, then print the final run as JSON.

Fails with a conflict if a webhook-launched pipeline already holds the run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "abort after this long (0 uses the orchestration timeout)")

	return cmd
}

func runComplete(parent context.Context, out io.Writer, executionID string, opts *completeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	a, err := app.New(parent)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = a.Cfg.Orchestration.Timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run, err := a.Services.Dispatcher.Orchestrate(ctx, executionID)
	if err != nil {
		return err
	}
	return printRun(out, run)
}

func printRun(out io.Writer, run *types.Run) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
