package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// newFormatter builds a formatter wired to the command's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openStore opens the span database for reporting commands. Errors are
// command errors (exit 2).
func openStore(opts *RootOptions) (*store.Store, error) {
	s, err := store.Open(opts.DB, store.WithBusyTimeout(opts.BusyTimeoutMS))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}

// openStoreFailOpen opens the span database for tracking commands. An
// unopenable database is logged and reported as nil; the caller degrades
// to an untracked no-op. A tracking process that exits non-zero would
// block the work it is only supposed to observe.
func openStoreFailOpen(opts *RootOptions) *store.Store {
	return failopen.Value(slog.Default(), "open span database", (*store.Store)(nil), func() (*store.Store, error) {
		return store.Open(opts.DB, store.WithBusyTimeout(opts.BusyTimeoutMS))
	})
}
