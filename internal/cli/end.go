package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/engine"
)

// EndOptions holds flags for the end command.
type EndOptions struct {
	*RootOptions
	Session string
}

// NewEndCommand creates the end command.
func NewEndCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EndOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "end",
		Short: "Close a session, completing all of its open spans",
		Long: `Close a session: emit a final session_end event naming the most recent
open procedure, then complete every open span in the session, active and
suspended alike.

Without --session this is a deliberate no-op. A sweep with no session
predicate would complete spans belonging to other invocations.

Fails open: storage trouble reports zero spans and exits 0.

Examples:
  waymark end --session s-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id")

	return cmd
}

func runEnd(opts *EndOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s := openStoreFailOpen(opts.RootOptions)
	if s == nil {
		return outputCount(formatter, "completed", 0)
	}
	defer s.Close()

	n := engine.New(s).CloseSession(context.Background(), opts.Session)
	return outputCount(formatter, "completed", n)
}
