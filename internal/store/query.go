package store

import (
	"context"
	"fmt"
	"strings"
)

// EventFilter selects events. Zero-value fields are unconstrained; Date
// matches the timestamp's YYYY-MM-DD prefix. All values are parameterized,
// never interpolated.
type EventFilter struct {
	Date      string
	Procedure string
	SessionID string
	EventType string
	Limit     int
}

// SQL compiles the filter into a parameterized SELECT. Every query carries
// ORDER BY timestamp with a rowid tiebreaker so results are deterministic
// even when events share a second.
func (f EventFilter) SQL() (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Date != "" {
		conds = append(conds, "timestamp LIKE ?")
		args = append(args, f.Date+"%")
	}
	if f.Procedure != "" {
		conds = append(conds, "procedure = ?")
		args = append(args, f.Procedure)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, f.EventType)
	}

	var b strings.Builder
	b.WriteString("SELECT id, timestamp, procedure, phase, event_type, session_id, payload FROM events")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY timestamp ASC, rowid ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	return b.String(), args
}

// Events returns the events matching the filter, timestamp-ordered.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	query, args := f.SQL()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		err := rows.Scan(
			&ev.ID,
			&ev.Timestamp,
			&ev.Procedure,
			&ev.Phase,
			&ev.EventType,
			&ev.SessionID,
			&ev.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// EventsByDate returns the day's events, optionally filtered by procedure.
func (s *Store) EventsByDate(ctx context.Context, date, procedure string) ([]Event, error) {
	return s.Events(ctx, EventFilter{Date: date, Procedure: procedure})
}

// EventsBySession returns every event recorded for the session.
func (s *Store) EventsBySession(ctx context.Context, sessionID string) ([]Event, error) {
	return s.Events(ctx, EventFilter{SessionID: sessionID})
}
