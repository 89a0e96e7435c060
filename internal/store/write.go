package store

import (
	"context"
	"fmt"
)

// insertSpan inserts one span row. Steps are serialized to the JSON column;
// an empty parent becomes NULL so the self-referential foreign key holds.
func insertSpan(ctx context.Context, q querier, sp *Span) error {
	stepsJSON, err := encodeSteps(sp.Steps)
	if err != nil {
		return fmt.Errorf("insert span: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO spans
		(span_id, procedure, parent_span_id, status, first_step, last_step, steps, session_id, started_at, completed_at, suspended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sp.SpanID,
		sp.Procedure,
		nullable(sp.ParentSpanID),
		sp.Status,
		sp.FirstStep,
		sp.LastStep,
		stepsJSON,
		sp.SessionID,
		sp.StartedAt,
		nullable(sp.CompletedAt),
		nullable(sp.SuspendedAt),
	)
	if err != nil {
		return fmt.Errorf("insert span: %w", err)
	}
	return nil
}

// setSteps replaces the span's step history and last_step marker.
// The caller decides the new list (dedup policy lives in the engine).
func setSteps(ctx context.Context, q querier, spanID string, steps []string, lastStep string) error {
	stepsJSON, err := encodeSteps(steps)
	if err != nil {
		return fmt.Errorf("set steps: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE spans SET steps = ?, last_step = ? WHERE span_id = ?
	`, stepsJSON, lastStep, spanID)
	if err != nil {
		return fmt.Errorf("set steps: %w", err)
	}
	return nil
}

// markResumed reactivates a suspended span and clears its suspension stamp.
func markResumed(ctx context.Context, q querier, spanID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE spans SET status = ?, suspended_at = NULL WHERE span_id = ?
	`, StatusActive, spanID)
	if err != nil {
		return fmt.Errorf("mark resumed: %w", err)
	}
	return nil
}

// suspendActive suspends every active span for (procedure, session),
// stamping suspended_at. Returns how many spans were suspended.
func suspendActive(ctx context.Context, q querier, procedure, sessionID, at string) (int64, error) {
	query := `UPDATE spans SET status = ?, suspended_at = ? WHERE procedure = ? AND status = ?`
	args := []any{StatusSuspended, at, procedure, StatusActive}
	query, args = sessionScoped(query, args, sessionID)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("suspend active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("suspend active: rows affected: %w", err)
	}
	return n, nil
}

// completeOpen completes every open span in the session, stamping
// completed_at. Idempotent: a session with no open spans affects zero rows.
func completeOpen(ctx context.Context, q querier, sessionID, at string) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE spans SET status = ?, completed_at = ?
		WHERE session_id = ? AND status IN (?, ?)
	`, StatusCompleted, at, sessionID, StatusActive, StatusSuspended)
	if err != nil {
		return 0, fmt.Errorf("complete open: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete open: rows affected: %w", err)
	}
	return n, nil
}

// insertEvent inserts one immutable event row.
func insertEvent(ctx context.Context, q querier, ev *Event) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO events
		(id, timestamp, procedure, phase, event_type, session_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.Timestamp,
		ev.Procedure,
		ev.Phase,
		ev.EventType,
		ev.SessionID,
		ev.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertEvent writes an event outside any transaction. Single inserts are
// atomic in SQLite; the exclusive transaction is reserved for span rows.
func (s *Store) InsertEvent(ctx context.Context, ev *Event) error {
	return insertEvent(ctx, s.db, ev)
}

// InsertSpan writes a new span row inside the exclusive transaction.
func (t *Tx) InsertSpan(ctx context.Context, sp *Span) error {
	return insertSpan(ctx, t.tx, sp)
}

// SetSteps replaces a span's step history inside the exclusive transaction.
func (t *Tx) SetSteps(ctx context.Context, spanID string, steps []string, lastStep string) error {
	return setSteps(ctx, t.tx, spanID, steps, lastStep)
}

// MarkResumed reactivates a suspended span inside the exclusive transaction.
func (t *Tx) MarkResumed(ctx context.Context, spanID string) error {
	return markResumed(ctx, t.tx, spanID)
}

// SuspendActive suspends the scope's active spans inside the exclusive
// transaction.
func (t *Tx) SuspendActive(ctx context.Context, procedure, sessionID, at string) (int64, error) {
	return suspendActive(ctx, t.tx, procedure, sessionID, at)
}

// CompleteOpen completes the session's open spans inside the exclusive
// transaction.
func (t *Tx) CompleteOpen(ctx context.Context, sessionID, at string) (int64, error) {
	return completeOpen(ctx, t.tx, sessionID, at)
}
