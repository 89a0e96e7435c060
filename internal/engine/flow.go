package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// visitNoteThreshold is how many lifetime visits a step takes before
// entries start carrying a pacing note.
const visitNoteThreshold = 10

// EnterResult is what a step entry hands back to the trigger layer.
type EnterResult struct {
	// Span is the span the entry landed in. Nil when the procedure is
	// untracked or tracking failed open.
	Span *store.Span `json:"span,omitempty"`
	// Notes are short context strings for the caller's prompt.
	Notes []string `json:"notes,omitempty"`
}

// EnterStep is the full entry pipeline for reading a procedure step (or
// the procedure itself, with an empty step):
//
//  1. A different procedure holding the session's active slot means a
//     procedure switch: emit session_end for it and suspend it.
//  2. Run the span state machine for the incoming procedure.
//  3. After a switch, emit session_start for the incoming procedure.
//  4. Emit the phase_enter breadcrumb.
//  5. Collect context notes: heavy revisits and span ancestry.
//
// Procedures named with a leading underscore are internal helpers and
// are not tracked at all.
func (e *Engine) EnterStep(ctx context.Context, procedure, step, sessionID string) *EnterResult {
	procedure = contract.Normalize(procedure)
	step = contract.Normalize(step)

	res := &EnterResult{}
	if procedure == "" || strings.HasPrefix(procedure, "_") {
		return res
	}

	prev := failopen.Value(e.logger, "detect procedure switch", (*store.Span)(nil), func() (*store.Span, error) {
		return e.store.ActiveSpanExcept(ctx, procedure, sessionID)
	})
	if prev != nil {
		e.EmitEvent(ctx, prev.Procedure, store.EventSessionEnd, store.EventSessionEnd, sessionID, nil)
		e.Suspend(ctx, prev.Procedure, sessionID)
	}

	res.Span = e.GetOrCreateSpan(ctx, procedure, step, sessionID)

	if prev != nil {
		e.EmitEvent(ctx, procedure, store.EventSessionStart, store.EventSessionStart, sessionID, nil)
	}

	phase := step
	if phase == "" {
		phase = store.WholeProcedure
	}
	e.EmitEvent(ctx, procedure, phase, store.EventPhaseEnter, sessionID, nil)

	res.Notes = e.entryNotes(ctx, procedure, phase, res.Span)
	return res
}

// entryNotes builds the context notes for one entry. The visit count is
// lifetime, deliberately unscoped by session: pacing advice cares about
// how worn a step is, not who wore it. It runs after the phase_enter
// emit, so the count includes the current visit.
func (e *Engine) entryNotes(ctx context.Context, procedure, phase string, sp *store.Span) []string {
	var notes []string

	visits := failopen.Value(e.logger, "count step visits", 0, func() (int, error) {
		return e.store.VisitCount(ctx, procedure, phase, "")
	})
	if visits > visitNoteThreshold {
		notes = append(notes, fmt.Sprintf("[%s:%s - visit #%d. Adapt pacing.]", procedure, phase, visits))
	}

	if sp != nil && sp.ParentSpanID != "" {
		parent := failopen.Value(e.logger, "load parent span", (*store.Span)(nil), func() (*store.Span, error) {
			return e.store.SpanByID(ctx, sp.ParentSpanID)
		})
		if parent != nil {
			notes = append(notes, fmt.Sprintf("[Entered from %s - be brief, context already loaded.]", parent.Procedure))
		}
	}

	return notes
}

// CloseSession ends a session's tracking: emits session_end for the most
// recent open procedure, then completes every open span in the session.
// Catches the case where no procedure switch ever closed the last
// segment. Returns how many spans were completed.
//
// Without a session id this is a no-op; there is nothing safe to sweep.
func (e *Engine) CloseSession(ctx context.Context, sessionID string) int64 {
	if sessionID == "" {
		return 0
	}

	last := failopen.Value(e.logger, "find last open span", (*store.Span)(nil), func() (*store.Span, error) {
		return e.store.MostRecentOpenSpan(ctx, sessionID)
	})
	if last != nil {
		e.EmitEvent(ctx, last.Procedure, store.EventSessionEnd, store.EventSessionEnd, sessionID, nil)
	}

	return e.CompleteAll(ctx, sessionID)
}
