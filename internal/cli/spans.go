package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/waymark/internal/store"
)

// SpansOptions holds flags for the spans command.
type SpansOptions struct {
	*RootOptions
	Session string
}

// Status glyphs for the span tree.
const (
	glyphActive    = "●"
	glyphSuspended = "◐"
	glyphCompleted = "○"
)

// NewSpansCommand creates the spans command.
func NewSpansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "spans",
		Short: "Show a session's spans as a call tree",
		Long: `Show every span in a session as a call tree: children indented under
the span that was open when they started.

Status glyphs: ` + glyphActive + ` active, ` + glyphSuspended + ` suspended, ` + glyphCompleted + ` completed.

Examples:
  waymark spans --session s-42
  waymark spans --session s-42 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpans(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runSpans(opts *SpansOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	spans, err := s.SpansBySession(context.Background(), opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query spans", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(spans)
	}
	return outputSpanTree(formatter, opts.Session, spans)
}

// spanNode is one span with its children, ordered oldest first.
type spanNode struct {
	span     store.Span
	children []*spanNode
}

// buildSpanTree links spans into a forest by parent_span_id. A parent
// outside the session (legacy global scoping) makes its child a root.
func buildSpanTree(spans []store.Span) []*spanNode {
	nodes := make(map[string]*spanNode, len(spans))
	for i := range spans {
		nodes[spans[i].SpanID] = &spanNode{span: spans[i]}
	}

	var roots []*spanNode
	for i := range spans {
		node := nodes[spans[i].SpanID]
		parent, ok := nodes[spans[i].ParentSpanID]
		if spans[i].ParentSpanID == "" || !ok {
			roots = append(roots, node)
			continue
		}
		parent.children = append(parent.children, node)
	}
	return roots
}

func outputSpanTree(formatter *OutputFormatter, sessionID string, spans []store.Span) error {
	w := formatter.Writer

	if len(spans) == 0 {
		fmt.Fprintf(w, "No spans found for session: %s\n", sessionID)
		return nil
	}

	fmt.Fprintf(w, "=== Spans (%s) ===\n", sessionID)
	for _, root := range buildSpanTree(spans) {
		printSpanNode(w, root, 0, formatter.Verbose)
	}
	return nil
}

func printSpanNode(w io.Writer, node *spanNode, depth int, verbose bool) {
	indent := strings.Repeat("  ", depth)
	sp := node.span

	fmt.Fprintf(w, "%s%s %s  %s  (%d %s)\n",
		indent, statusGlyph(sp.Status), sp.Procedure, stepRange(sp), len(sp.Steps), plural(len(sp.Steps), "step"))
	if verbose {
		fmt.Fprintf(w, "%s  id=%s started=%s\n", indent, sp.SpanID, sp.StartedAt)
	}

	for _, child := range node.children {
		printSpanNode(w, child, depth+1, verbose)
	}
}

func statusGlyph(status string) string {
	switch status {
	case store.StatusActive:
		return glyphActive
	case store.StatusSuspended:
		return glyphSuspended
	case store.StatusCompleted:
		return glyphCompleted
	default:
		return "?"
	}
}

// stepRange renders the traversal as first->last, collapsing single-step
// spans to one name.
func stepRange(sp store.Span) string {
	if sp.FirstStep == sp.LastStep {
		return sp.FirstStep
	}
	return sp.FirstStep + "->" + sp.LastStep
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
