package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// Engine owns the span lifecycle. Every public operation is a fail-open
// boundary: storage trouble is logged and converted to a no-op result,
// never an error, because tracking must not block the work it observes.
type Engine struct {
	store  *store.Store
	clock  Clock
	ids    IDSource
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock. Tests pass a fixed clock for
// deterministic timestamps.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithIDSource overrides identifier minting. Tests pass a sequential
// source for deterministic span and event ids.
func WithIDSource(ids IDSource) EngineOption {
	return func(e *Engine) { e.ids = ids }
}

// WithLogger routes fail-open warnings to logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over s with production defaults: system clock,
// random identifiers, the default slog logger.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		ids:    RandomIDs{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetOrCreateSpan runs the span state machine for (procedure, session)
// inside one exclusive transaction:
//
//  1. An active span exists: append step to it (empty steps and adjacent
//     duplicates are skipped) and return it. No new span.
//  2. A suspended span exists: reactivate it, clear suspended_at, append
//     step the same way, return it. Resume, don't create.
//  3. Otherwise create a new span. The parent comes from the ancestry
//     heuristic; with no step the whole-procedure sentinel seeds the
//     step history.
//
// Branch order matters: an active span always takes precedence for
// append. The whole read-decide-write sequence holds the store's
// exclusive lock, so concurrent processes serialize here.
//
// Returns nil when storage fails; the failure is logged and the caller
// proceeds untracked.
func (e *Engine) GetOrCreateSpan(ctx context.Context, procedure, step, sessionID string) *store.Span {
	procedure = contract.Normalize(procedure)
	step = contract.Normalize(step)

	return failopen.Value(e.logger, "get or create span", (*store.Span)(nil), func() (*store.Span, error) {
		var result *store.Span
		err := e.store.ExclusiveTx(ctx, func(tx *store.Tx) error {
			sp, err := e.appendToActive(ctx, tx, procedure, step, sessionID)
			if err != nil || sp != nil {
				result = sp
				return err
			}
			sp, err = e.resumeSuspended(ctx, tx, procedure, step, sessionID)
			if err != nil || sp != nil {
				result = sp
				return err
			}
			result, err = e.createSpan(ctx, tx, procedure, step, sessionID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// appendToActive implements branch 1. Returns nil when no active span
// holds the scope.
func (e *Engine) appendToActive(ctx context.Context, tx *store.Tx, procedure, step, sessionID string) (*store.Span, error) {
	sp, err := tx.ActiveSpan(ctx, procedure, sessionID)
	if err != nil || sp == nil {
		return nil, err
	}
	if steps, changed := appendStep(sp.Steps, step); changed {
		if err := tx.SetSteps(ctx, sp.SpanID, steps, step); err != nil {
			return nil, err
		}
		sp.Steps = steps
		sp.LastStep = step
	}
	return sp, nil
}

// resumeSuspended implements branch 2. Returns nil when no suspended
// span holds the scope.
func (e *Engine) resumeSuspended(ctx context.Context, tx *store.Tx, procedure, step, sessionID string) (*store.Span, error) {
	sp, err := tx.SuspendedSpan(ctx, procedure, sessionID)
	if err != nil || sp == nil {
		return nil, err
	}
	if err := tx.MarkResumed(ctx, sp.SpanID); err != nil {
		return nil, err
	}
	sp.Status = store.StatusActive
	sp.SuspendedAt = ""
	if steps, changed := appendStep(sp.Steps, step); changed {
		if err := tx.SetSteps(ctx, sp.SpanID, steps, step); err != nil {
			return nil, err
		}
		sp.Steps = steps
		sp.LastStep = step
	}
	return sp, nil
}

// createSpan implements branch 3.
func (e *Engine) createSpan(ctx context.Context, tx *store.Tx, procedure, step, sessionID string) (*store.Span, error) {
	parentID, err := resolveParent(ctx, tx, procedure, sessionID)
	if err != nil {
		return nil, err
	}
	firstStep := step
	if firstStep == "" {
		firstStep = store.WholeProcedure
	}
	sp := &store.Span{
		SpanID:       e.ids.SpanID(),
		Procedure:    procedure,
		ParentSpanID: parentID,
		Status:       store.StatusActive,
		FirstStep:    firstStep,
		LastStep:     firstStep,
		Steps:        []string{firstStep},
		SessionID:    sessionID,
		StartedAt:    e.now(),
	}
	if err := tx.InsertSpan(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Suspend marks every active span for (procedure, session) suspended,
// stamping suspended_at. Called on the outgoing procedure when a switch
// is detected. Returns the number of spans suspended, 0 on storage
// failure.
func (e *Engine) Suspend(ctx context.Context, procedure, sessionID string) int64 {
	procedure = contract.Normalize(procedure)

	return failopen.Value(e.logger, "suspend spans", int64(0), func() (int64, error) {
		var n int64
		err := e.store.ExclusiveTx(ctx, func(tx *store.Tx) error {
			var err error
			n, err = tx.SuspendActive(ctx, procedure, sessionID, e.now())
			return err
		})
		return n, err
	})
}

// CompleteAll completes every open span in the session, active and
// suspended alike, stamping completed_at. Idempotent. Returns how many
// spans were completed.
//
// An empty session id is a deliberate no-op: without the session
// predicate the sweep would complete legacy global spans belonging to
// other invocations.
func (e *Engine) CompleteAll(ctx context.Context, sessionID string) int64 {
	if sessionID == "" {
		return 0
	}
	return failopen.Value(e.logger, "complete session spans", int64(0), func() (int64, error) {
		var n int64
		err := e.store.ExclusiveTx(ctx, func(tx *store.Tx) error {
			var err error
			n, err = tx.CompleteOpen(ctx, sessionID, e.now())
			return err
		})
		return n, err
	})
}

// appendStep returns the step history with step appended, skipping empty
// steps and adjacent duplicates. The input slice is never mutated.
func appendStep(steps []string, step string) ([]string, bool) {
	if step == "" {
		return steps, false
	}
	if len(steps) > 0 && steps[len(steps)-1] == step {
		return steps, false
	}
	out := make([]string, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, step), true
}

func (e *Engine) now() string {
	return store.FormatTime(e.clock.Now())
}
