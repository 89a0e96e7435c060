package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// spanColumns is the column list every span query selects, in scanSpan order.
const spanColumns = `span_id, procedure, parent_span_id, status, first_step, last_step, steps, session_id, started_at, completed_at, suspended_at`

// querier is the query surface shared by *sql.DB and *sql.Tx, so span
// lookups run identically inside and outside the exclusive transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSpan builds a typed Span from a row selected with spanColumns.
func scanSpan(row rowScanner) (*Span, error) {
	var sp Span
	var parent, completed, suspended sql.NullString
	var stepsJSON string

	err := row.Scan(
		&sp.SpanID,
		&sp.Procedure,
		&parent,
		&sp.Status,
		&sp.FirstStep,
		&sp.LastStep,
		&stepsJSON,
		&sp.SessionID,
		&sp.StartedAt,
		&completed,
		&suspended,
	)
	if err != nil {
		return nil, err
	}

	sp.ParentSpanID = parent.String
	sp.CompletedAt = completed.String
	sp.SuspendedAt = suspended.String
	sp.Steps = decodeSteps(stepsJSON)
	return &sp, nil
}

// oneSpan runs a single-row span query, mapping sql.ErrNoRows to (nil, nil):
// absence is an expected outcome for scope lookups, not an error.
func oneSpan(ctx context.Context, q querier, query string, args ...any) (*Span, error) {
	sp, err := scanSpan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query span: %w", err)
	}
	return sp, nil
}

// sessionScoped appends the session predicate when a session id is present.
// An empty session id means legacy global scoping: no predicate at all, so
// the query degrades to "most recent match regardless of session".
func sessionScoped(query string, args []any, sessionID string) (string, []any) {
	if sessionID == "" {
		return query, args
	}
	return query + " AND session_id = ?", append(args, sessionID)
}

// spanByStatus returns the most recent span for (procedure, session) in the
// given status, or nil.
func spanByStatus(ctx context.Context, q querier, procedure, sessionID, status string) (*Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE procedure = ? AND status = ?`
	args := []any{procedure, status}
	query, args = sessionScoped(query, args, sessionID)
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT 1`
	return oneSpan(ctx, q, query, args...)
}

// activeSpanExcept returns the most recent active span in the session whose
// procedure differs from the given one, or nil. Used to detect a procedure
// switch before the incoming procedure's span is touched.
func activeSpanExcept(ctx context.Context, q querier, procedure, sessionID string) (*Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE procedure <> ? AND status = ?`
	args := []any{procedure, StatusActive}
	query, args = sessionScoped(query, args, sessionID)
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT 1`
	return oneSpan(ctx, q, query, args...)
}

// latestOpenSpanExcept returns the most recently started open span in the
// session for any other procedure, or nil. This is the ancestry lookup: the
// newest still-open span is taken to be the caller of the span being created.
func latestOpenSpanExcept(ctx context.Context, q querier, procedure, sessionID string) (*Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE procedure <> ? AND status IN (?, ?)`
	args := []any{procedure, StatusActive, StatusSuspended}
	query, args = sessionScoped(query, args, sessionID)
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT 1`
	return oneSpan(ctx, q, query, args...)
}

// mostRecentOpenSpan returns the newest open span in the session, or nil.
func mostRecentOpenSpan(ctx context.Context, q querier, sessionID string) (*Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE status IN (?, ?)`
	args := []any{StatusActive, StatusSuspended}
	query, args = sessionScoped(query, args, sessionID)
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT 1`
	return oneSpan(ctx, q, query, args...)
}

func spanByID(ctx context.Context, q querier, spanID string) (*Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE span_id = ?`
	return oneSpan(ctx, q, query, spanID)
}

// spansBySession returns every span in the session, oldest first.
// Returns an empty slice (not nil) when the session has no spans.
func spansBySession(ctx context.Context, q querier, sessionID string) ([]Span, error) {
	query := `SELECT ` + spanColumns + ` FROM spans WHERE session_id = ? ORDER BY started_at ASC, rowid ASC`

	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session spans: %w", err)
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session span: %w", err)
		}
		spans = append(spans, *sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session spans: %w", err)
	}

	if spans == nil {
		spans = []Span{}
	}
	return spans, nil
}

// visitCount counts phase_enter events recorded for the step.
func visitCount(ctx context.Context, q querier, procedure, step, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM events WHERE procedure = ? AND phase = ? AND event_type = ?`
	args := []any{procedure, step, EventPhaseEnter}
	query, args = sessionScoped(query, args, sessionID)

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return count, nil
}

// ActiveSpan returns the active span for (procedure, session), or nil.
func (s *Store) ActiveSpan(ctx context.Context, procedure, sessionID string) (*Span, error) {
	return spanByStatus(ctx, s.db, procedure, sessionID, StatusActive)
}

// ActiveSpanExcept returns the active span held by a different procedure in
// the same session, or nil.
func (s *Store) ActiveSpanExcept(ctx context.Context, procedure, sessionID string) (*Span, error) {
	return activeSpanExcept(ctx, s.db, procedure, sessionID)
}

// MostRecentOpenSpan returns the newest active or suspended span in the
// session, or nil.
func (s *Store) MostRecentOpenSpan(ctx context.Context, sessionID string) (*Span, error) {
	return mostRecentOpenSpan(ctx, s.db, sessionID)
}

// SpanByID returns the span with the given id, or nil when absent.
func (s *Store) SpanByID(ctx context.Context, spanID string) (*Span, error) {
	return spanByID(ctx, s.db, spanID)
}

// SpansBySession returns every span recorded for the session, oldest first.
func (s *Store) SpansBySession(ctx context.Context, sessionID string) ([]Span, error) {
	return spansBySession(ctx, s.db, sessionID)
}

// VisitCount counts how many times the step has been entered, as witnessed
// by phase_enter events in scope.
func (s *Store) VisitCount(ctx context.Context, procedure, step, sessionID string) (int, error) {
	return visitCount(ctx, s.db, procedure, step, sessionID)
}

// ActiveSpan returns the active span for (procedure, session) within the
// exclusive transaction, or nil.
func (t *Tx) ActiveSpan(ctx context.Context, procedure, sessionID string) (*Span, error) {
	return spanByStatus(ctx, t.tx, procedure, sessionID, StatusActive)
}

// SuspendedSpan returns the suspended span for (procedure, session), or nil.
func (t *Tx) SuspendedSpan(ctx context.Context, procedure, sessionID string) (*Span, error) {
	return spanByStatus(ctx, t.tx, procedure, sessionID, StatusSuspended)
}

// LatestOpenSpanExcept returns the most recent open span for any other
// procedure in the session, or nil. See the ancestry notes in the engine.
func (t *Tx) LatestOpenSpanExcept(ctx context.Context, procedure, sessionID string) (*Span, error) {
	return latestOpenSpanExcept(ctx, t.tx, procedure, sessionID)
}
