package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/contract"
)

// VetOptions holds flags for the vet command.
type VetOptions struct {
	*RootOptions
	Procedure string
}

// VetResult holds vet results.
type VetResult struct {
	Valid    bool               `json:"valid"`
	Findings []contract.Finding `json:"findings,omitempty"`
}

// NewVetCommand creates the vet command.
func NewVetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vet [contracts-dir]",
		Short: "Lint procedure contracts",
		Long: `Lint every step file's frontmatter against the step schema and report
what the lenient runtime parser deliberately tolerates: missing
frontmatter, YAML errors, unknown fields, duplicate produces
declarations, and consumed artifacts nothing produces.

The runtime never blocks on any of these; vet surfaces them at
authoring time instead.

Examples:
  waymark vet
  waymark vet ./skills
  waymark vet --procedure research`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.ContractsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runVet(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "vet a single procedure")

	return cmd
}

func runVet(opts *VetOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var (
		findings []contract.Finding
		err      error
	)
	if opts.Procedure != "" {
		formatter.VerboseLog("Vetting procedure: %s", opts.Procedure)
		findings, err = contract.Vet(dir, opts.Procedure)
	} else {
		formatter.VerboseLog("Vetting contracts under %s", dir)
		findings, err = contract.VetAll(dir)
	}
	if err != nil {
		_ = formatter.Error(contract.ErrFileUnreadable, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to vet contracts", err)
	}

	if len(findings) > 0 {
		return outputVetFindings(formatter, findings)
	}
	return outputVetSuccess(formatter)
}

// outputVetFindings reports lint findings. Findings are a check failure
// (exit 1), distinct from command errors (exit 2).
func outputVetFindings(formatter *OutputFormatter, findings []contract.Finding) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   VetResult{Valid: false, Findings: findings},
			Error: &CLIError{
				Code:    findings[0].Code,
				Message: findings[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("vet failed with %d finding(s)", len(findings)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Vet failed")
	fmt.Fprintln(formatter.Writer)
	for _, f := range findings {
		fmt.Fprintf(formatter.Writer, "  %s\n", f.Error())
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("vet failed with %d finding(s)", len(findings)))
}

// outputVetSuccess reports a clean vet.
func outputVetSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(VetResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ All contracts valid")
	return nil
}
