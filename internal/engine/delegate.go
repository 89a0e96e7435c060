package engine

import (
	"context"
	"strings"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// RecordDelegatedStep appends step to the scope's active span when a
// delegated sub-process is handed that step. It only ever appends:
// no active span means a silent no-op, never a create or a resume.
// A procedure that was merely mentioned in a prompt must not grow a
// phantom span. Suspended spans are left untouched for the same reason.
//
// Reports whether the step was recorded. Adjacent duplicates and
// underscore-prefixed internal procedures are skipped.
func (e *Engine) RecordDelegatedStep(ctx context.Context, procedure, step, sessionID string) bool {
	procedure = contract.Normalize(procedure)
	step = contract.Normalize(step)
	if procedure == "" || step == "" || strings.HasPrefix(procedure, "_") {
		return false
	}

	recorded := failopen.Value(e.logger, "record delegated step", false, func() (bool, error) {
		var wrote bool
		err := e.store.ExclusiveTx(ctx, func(tx *store.Tx) error {
			sp, err := tx.ActiveSpan(ctx, procedure, sessionID)
			if err != nil || sp == nil {
				return err
			}
			steps, changed := appendStep(sp.Steps, step)
			if !changed {
				return nil
			}
			if err := tx.SetSteps(ctx, sp.SpanID, steps, step); err != nil {
				return err
			}
			wrote = true
			return nil
		})
		return wrote, err
	})

	if recorded {
		e.EmitEvent(ctx, procedure, step, store.EventDelegate, sessionID, nil)
	}
	return recorded
}

// RecordDelegations scans text, typically a delegation prompt, for step
// file references and records each one against its procedure's active
// span. Returns how many references were recorded.
func (e *Engine) RecordDelegations(ctx context.Context, text, sessionID string) int {
	recorded := 0
	for _, ref := range contract.FindStepRefs(text) {
		if e.RecordDelegatedStep(ctx, ref.Procedure, ref.Step, sessionID) {
			recorded++
		}
	}
	return recorded
}
