package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/engine"
)

// DelegateOptions holds flags for the delegate command.
type DelegateOptions struct {
	*RootOptions
	Ref       string
	Procedure string
	Step      string
	Prompt    string
	Session   string
}

// delegateResult is the JSON payload for the delegate command.
type delegateResult struct {
	Recorded int `json:"recorded"`
}

// NewDelegateCommand creates the delegate command.
func NewDelegateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DelegateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Record steps handed to a delegated sub-process",
		Long: `Record steps that a delegated sub-process was asked to work through.

With --prompt, scans the text for step file references and records each
one; this is how delegation prompts are tracked. With --ref or
--procedure/--step a single step is recorded.

Delegation only ever appends to an already-active span. A procedure
merely mentioned in a prompt does not get a span, and suspended spans
are left untouched.

Fails open: storage trouble reports zero steps and exits 0.

Examples:
  waymark delegate --prompt "$(cat task-prompt.txt)" --session s-42
  waymark delegate --ref skills/research/steps/gather.md --session s-42
  waymark delegate --procedure research --step gather --session s-42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelegate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ref, "ref", "", "step file reference (<procedure>/steps/<step>.md)")
	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "procedure name")
	cmd.Flags().StringVar(&opts.Step, "step", "", "step name")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "delegation prompt text to scan for step references")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id")

	return cmd
}

func runDelegate(opts *DelegateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var procedure, step string
	if opts.Prompt == "" {
		var err error
		procedure, step, err = resolveTarget(opts.Ref, opts.Procedure, opts.Step)
		if err != nil {
			return err
		}
		if step == "" {
			return NewExitError(ExitCommandError, "delegation records a step; --step is required without --prompt")
		}
	}

	s := openStoreFailOpen(opts.RootOptions)
	if s == nil {
		return outputDelegate(formatter, 0)
	}
	defer s.Close()

	eng := engine.New(s)
	ctx := context.Background()

	if opts.Prompt != "" {
		return outputDelegate(formatter, eng.RecordDelegations(ctx, opts.Prompt, opts.Session))
	}

	recorded := 0
	if eng.RecordDelegatedStep(ctx, procedure, step, opts.Session) {
		recorded = 1
	}
	return outputDelegate(formatter, recorded)
}

func outputDelegate(formatter *OutputFormatter, recorded int) error {
	if formatter.Format == "json" {
		return formatter.Success(delegateResult{Recorded: recorded})
	}
	fmt.Fprintf(formatter.Writer, "recorded %d delegated step(s)\n", recorded)
	return nil
}
