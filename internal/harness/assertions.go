package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/waymark/internal/store"
)

// AssertionError is returned when an assertion fails. It carries the
// expected and actual outcomes so a failure reads without re-running
// the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  expected: %s\n  actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages. An empty slice means all held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertSpanStatus:
		return assertSpanStatus(result.Spans, a)
	case AssertSpanSteps:
		return assertSpanSteps(result.Spans, a)
	case AssertSpanParent:
		return assertSpanParent(result.Spans, a)
	case AssertSpanCount:
		return assertSpanCount(result.Spans, a)
	case AssertEventOrder:
		return assertEventOrder(result.Events, a)
	case AssertEventCount:
		return assertEventCount(result.Events, a)
	case AssertNoteContains:
		return assertNoteContains(result.Notes, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// latestSpan returns the newest span for the procedure, or nil. Spans
// arrive ordered oldest first, so the last match wins; a procedure that
// completed and was re-entered is judged by its newest span.
func latestSpan(spans []store.Span, procedure string) *store.Span {
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].Procedure == procedure {
			return &spans[i]
		}
	}
	return nil
}

func assertSpanStatus(spans []store.Span, a Assertion) error {
	sp := latestSpan(spans, a.Procedure)
	if sp == nil {
		return &AssertionError{
			Type:     AssertSpanStatus,
			Expected: fmt.Sprintf("a span for procedure %q with status %q", a.Procedure, a.Status),
			Actual:   "no span recorded for that procedure",
		}
	}
	if sp.Status != a.Status {
		return &AssertionError{
			Type:     AssertSpanStatus,
			Expected: fmt.Sprintf("procedure %q status %q", a.Procedure, a.Status),
			Actual:   fmt.Sprintf("status %q", sp.Status),
		}
	}
	return nil
}

func assertSpanSteps(spans []store.Span, a Assertion) error {
	sp := latestSpan(spans, a.Procedure)
	if sp == nil {
		return &AssertionError{
			Type:     AssertSpanSteps,
			Expected: fmt.Sprintf("a span for procedure %q with steps %v", a.Procedure, a.Steps),
			Actual:   "no span recorded for that procedure",
		}
	}
	if !slices.Equal(sp.Steps, a.Steps) {
		return &AssertionError{
			Type:     AssertSpanSteps,
			Expected: fmt.Sprintf("procedure %q steps %v", a.Procedure, a.Steps),
			Actual:   fmt.Sprintf("steps %v", sp.Steps),
		}
	}
	return nil
}

func assertSpanParent(spans []store.Span, a Assertion) error {
	sp := latestSpan(spans, a.Procedure)
	if sp == nil {
		return &AssertionError{
			Type:     AssertSpanParent,
			Expected: fmt.Sprintf("a span for procedure %q parented under %q", a.Procedure, a.Parent),
			Actual:   "no span recorded for that procedure",
		}
	}
	if sp.ParentSpanID == "" {
		return &AssertionError{
			Type:     AssertSpanParent,
			Expected: fmt.Sprintf("procedure %q parented under %q", a.Procedure, a.Parent),
			Actual:   "span has no parent",
		}
	}
	for i := range spans {
		if spans[i].SpanID == sp.ParentSpanID {
			if spans[i].Procedure != a.Parent {
				return &AssertionError{
					Type:     AssertSpanParent,
					Expected: fmt.Sprintf("procedure %q parented under %q", a.Procedure, a.Parent),
					Actual:   fmt.Sprintf("parented under %q", spans[i].Procedure),
				}
			}
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSpanParent,
		Expected: fmt.Sprintf("procedure %q parented under %q", a.Procedure, a.Parent),
		Actual:   fmt.Sprintf("parent span %q is not in the session", sp.ParentSpanID),
	}
}

func assertSpanCount(spans []store.Span, a Assertion) error {
	if len(spans) != a.Count {
		return &AssertionError{
			Type:     AssertSpanCount,
			Expected: fmt.Sprintf("%d span(s) in the session", a.Count),
			Actual:   fmt.Sprintf("%d span(s)", len(spans)),
		}
	}
	return nil
}

// assertEventOrder checks that the event type sequence appears in order
// in the log. Subsequence semantics: other events may interleave, but
// the named types must occur in the given order.
func assertEventOrder(events []store.Event, a Assertion) error {
	next := 0
	for _, ev := range events {
		if next < len(a.Types) && ev.EventType == a.Types[next] {
			next++
		}
	}
	if next != len(a.Types) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("event types %v in order", a.Types),
			Actual:   fmt.Sprintf("event types %v", eventTypes(events)),
		}
	}
	return nil
}

func assertEventCount(events []store.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if ev.EventType == a.EventType {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %q event(s)", a.Count, a.EventType),
			Actual:   fmt.Sprintf("%d event(s)", count),
		}
	}
	return nil
}

func assertNoteContains(notes []string, a Assertion) error {
	for _, note := range notes {
		if strings.Contains(note, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertNoteContains,
		Expected: fmt.Sprintf("a note containing %q", a.Text),
		Actual:   fmt.Sprintf("notes %v", notes),
	}
}

func eventTypes(events []store.Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.EventType
	}
	return types
}
