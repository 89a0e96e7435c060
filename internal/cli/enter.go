package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/engine"
)

// EnterOptions holds flags for the enter command.
type EnterOptions struct {
	*RootOptions
	Ref       string
	Procedure string
	Step      string
	Session   string
}

// NewEnterCommand creates the enter command.
func NewEnterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Record that a procedure step was entered",
		Long: `Record that the agent entered a procedure step, or a whole procedure
when no step is given.

Runs the full entry pipeline: detects a procedure switch (suspending the
outgoing procedure), creates or resumes the span, appends the step to
its history, and emits the event breadcrumbs. Context notes for the
caller's prompt are printed one per line.

Fails open: storage trouble prints nothing and exits 0.

Examples:
  waymark enter --ref skills/research/steps/gather.md --session s-42
  waymark enter --procedure research --step gather --session s-42
  waymark enter --procedure deploy --session s-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnter(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "step file reference (<procedure>/steps/<step>.md)")
	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "procedure name")
	cmd.Flags().StringVar(&opts.Step, "step", "", "step name (empty for whole-procedure entry)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id")

	return cmd
}

func runEnter(opts *EnterOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	procedure, step, err := resolveTarget(opts.Ref, opts.Procedure, opts.Step)
	if err != nil {
		return err
	}

	s := openStoreFailOpen(opts.RootOptions)
	if s == nil {
		return outputEnter(formatter, &engine.EnterResult{})
	}
	defer s.Close()

	res := engine.New(s).EnterStep(context.Background(), procedure, step, opts.Session)
	return outputEnter(formatter, res)
}

// resolveTarget turns the --ref / --procedure / --step flags into a
// (procedure, step) pair. A ref wins when both are given.
func resolveTarget(ref, procedure, step string) (string, string, error) {
	if ref != "" {
		p, s, ok := contract.ParseStepRef(ref)
		if !ok {
			return "", "", NewExitError(ExitCommandError, fmt.Sprintf("not a step file reference: %s", ref))
		}
		return p, s, nil
	}
	if procedure == "" {
		return "", "", NewExitError(ExitCommandError, "either --ref or --procedure is required")
	}
	return procedure, step, nil
}

// outputEnter prints the entry result. In text format only the notes go
// to stdout; they are what a hook wrapper forwards into the caller's
// context. The span line is diagnostic.
func outputEnter(formatter *OutputFormatter, res *engine.EnterResult) error {
	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	if res.Span != nil {
		formatter.VerboseLog("span %s %s status=%s steps=%d", res.Span.SpanID, res.Span.Procedure, res.Span.Status, len(res.Span.Steps))
	}
	for _, note := range res.Notes {
		fmt.Fprintln(formatter.Writer, note)
	}
	return nil
}
