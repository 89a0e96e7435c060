package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	DB            string
	ContractsDir  string
	Format        string // "json" | "text"
	Verbose       bool
	BusyTimeoutMS int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the waymark CLI.
// Defaults come from cfg; flags override.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{BusyTimeoutMS: cfg.BusyTimeoutMS}

	cmd := &cobra.Command{
		Use:   "waymark",
		Short: "Waymark tracks agent traversal of step-file procedures",
		Long: `Waymark records which steps of a multi-step procedure an agent has
actually read, as spans in a local SQLite file, so that dependency
checks and session reports survive across short-lived processes.

Tracking commands (enter, suspend, end, delegate, gate) fail open:
storage trouble degrades to an untracked no-op rather than blocking
the caller. Reporting commands (spans, events, vet) fail loud.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := cfg.Level()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", cfg.DBPath, "path to the span database")
	cmd.PersistentFlags().StringVar(&opts.ContractsDir, "contracts-dir", cfg.ContractsDir, "root of the procedure contract tree")

	cmd.AddCommand(NewEnterCommand(opts))
	cmd.AddCommand(NewSuspendCommand(opts))
	cmd.AddCommand(NewEndCommand(opts))
	cmd.AddCommand(NewGateCommand(opts))
	cmd.AddCommand(NewDelegateCommand(opts))
	cmd.AddCommand(NewSpansCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewVetCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
