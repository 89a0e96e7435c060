package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Date      string
	Procedure string
	Session   string
	EventType string
	Limit     int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List event breadcrumbs, timestamp-ordered",
		Long: `List the append-only event log, oldest first. Filters combine with AND.

Examples:
  waymark events --date 2024-01-01
  waymark events --date 2024-01-01 --procedure research
  waymark events --session s-42 --type phase_enter
  waymark events --session s-42 --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "day filter (YYYY-MM-DD timestamp prefix)")
	cmd.Flags().StringVar(&opts.Procedure, "procedure", "", "procedure filter")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session filter")
	cmd.Flags().StringVar(&opts.EventType, "type", "", "event type filter")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum events to return (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := s.Events(context.Background(), store.EventFilter{
		Date:      opts.Date,
		Procedure: opts.Procedure,
		SessionID: opts.Session,
		EventType: opts.EventType,
		Limit:     opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query events", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(events)
	}
	return outputEvents(formatter, events)
}

func outputEvents(formatter *OutputFormatter, events []store.Event) error {
	w := formatter.Writer

	if len(events) == 0 {
		fmt.Fprintln(w, "No events found")
		return nil
	}

	for _, ev := range events {
		subject := ev.Procedure
		if ev.Phase != "" && ev.Phase != ev.EventType {
			subject = ev.Procedure + ":" + ev.Phase
		}
		// Width fits the longest event type, subagent_step_delegate.
		fmt.Fprintf(w, "%s  %-22s  %s\n", ev.Timestamp, ev.EventType, subject)
		if formatter.Verbose && ev.Payload != "" {
			fmt.Fprintf(w, "    payload: %s\n", ev.Payload)
		}
	}
	return nil
}
