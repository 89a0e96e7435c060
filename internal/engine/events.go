package engine

import (
	"context"
	"encoding/json"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// EmitEvent appends one breadcrumb to the event log. The payload, when
// non-nil, is JSON-encoded; an unencodable payload is dropped rather
// than blocking the event. Returns the event id, or "" when the write
// failed open.
//
// Events are single INSERTs and skip the exclusive transaction: SQLite
// makes them atomic on their own, and breadcrumbs must stay cheap.
func (e *Engine) EmitEvent(ctx context.Context, procedure, phase, eventType, sessionID string, payload any) string {
	var body string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			e.logger.Warn("dropping unencodable event payload", "procedure", procedure, "event_type", eventType, "error", err)
		} else {
			body = string(b)
		}
	}

	ev := &store.Event{
		ID:        e.ids.EventID(),
		Timestamp: e.now(),
		Procedure: contract.Normalize(procedure),
		Phase:     contract.Normalize(phase),
		EventType: eventType,
		SessionID: sessionID,
		Payload:   body,
	}

	return failopen.Value(e.logger, "emit event", "", func() (string, error) {
		if err := e.store.InsertEvent(ctx, ev); err != nil {
			return "", err
		}
		return ev.ID, nil
	})
}
