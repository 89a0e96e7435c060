package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/engine"
)

// SuspendOptions holds flags for the suspend command.
type SuspendOptions struct {
	*RootOptions
	Procedure string
	Session   string
}

// countResult is the JSON payload for commands that report a row count.
type countResult struct {
	Count int64 `json:"count"`
}

// NewSuspendCommand creates the suspend command.
func NewSuspendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SuspendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "Suspend the active span for a procedure",
		Long: `Mark the active span for a procedure suspended, so a later entry
resumes it instead of creating a duplicate.

Fails open: storage trouble reports zero spans and exits 0.

Examples:
  waymark suspend --procedure research --session s-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "procedure name (required)")
	_ = cmd.MarkFlagRequired("procedure")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id")

	return cmd
}

func runSuspend(opts *SuspendOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s := openStoreFailOpen(opts.RootOptions)
	if s == nil {
		return outputCount(formatter, "suspended", 0)
	}
	defer s.Close()

	n := engine.New(s).Suspend(context.Background(), opts.Procedure, opts.Session)
	return outputCount(formatter, "suspended", n)
}

// outputCount prints a span count in the configured format.
func outputCount(formatter *OutputFormatter, verb string, n int64) error {
	if formatter.Format == "json" {
		return formatter.Success(countResult{Count: n})
	}
	fmt.Fprintf(formatter.Writer, "%s %d span(s)\n", verb, n)
	return nil
}
