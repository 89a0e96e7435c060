package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/gate"
)

// GateOptions holds flags for the gate command.
type GateOptions struct {
	*RootOptions
	Ref       string
	Procedure string
	Step      string
	Session   string
}

// NewGateCommand creates the gate command.
func NewGateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Check whether a step's dependencies are satisfied",
		Long: `Check a step's declared consumes against what the session's active span
has already visited.

Allowed exits 0. Blocked prints the reason and exits 1; the reason names
every missing artifact and the step that produces it. The decision is
advisory and fails open: no contract, no active span, or storage trouble
all allow.

Examples:
  waymark gate --ref skills/research/steps/decide.md --session s-42
  waymark gate --procedure research --step decide --session s-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "step file reference (<procedure>/steps/<step>.md)")
	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "procedure name")
	cmd.Flags().StringVar(&opts.Step, "step", "", "step name")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id")

	return cmd
}

func runGate(opts *GateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	procedure, step, err := resolveTarget(opts.Ref, opts.Procedure, opts.Step)
	if err != nil {
		return err
	}

	s := openStoreFailOpen(opts.RootOptions)
	if s == nil {
		return outputGate(formatter, gate.Decision{Allowed: true})
	}
	defer s.Close()

	g := gate.New(s, contract.NewCache(opts.ContractsDir), slog.Default())
	decision := g.MayAccess(context.Background(), procedure, step, opts.Session)
	return outputGate(formatter, decision)
}

// outputGate prints the decision. A block is a check failure (exit 1),
// not a command error; the reason on stdout is the payload a hook
// wrapper forwards to the caller.
func outputGate(formatter *OutputFormatter, decision gate.Decision) error {
	if formatter.Format == "json" {
		if err := formatter.Success(decision); err != nil {
			return err
		}
		if !decision.Allowed {
			return NewExitError(ExitFailure, "gate blocked")
		}
		return nil
	}

	if decision.Allowed {
		fmt.Fprintln(formatter.Writer, "✓ allowed")
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ blocked")
	fmt.Fprintln(formatter.Writer, decision.Reason)
	return NewExitError(ExitFailure, "gate blocked")
}
