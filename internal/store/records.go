package store

// Span statuses. A span is open while active or suspended; completed is
// terminal.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCompleted = "completed"
)

// WholeProcedure is the step sentinel recorded when a procedure is entered
// as a whole, with no sub-step named.
const WholeProcedure = "PROCEDURE"

// Event types written to the events table.
const (
	EventPhaseEnter   = "phase_enter"
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventDelegate     = "subagent_step_delegate"
)

// Span is the typed record for one spans row, constructed at the store
// boundary. Timestamps are UTC strings in TimeLayout; optional fields are
// empty strings rather than pointers.
type Span struct {
	SpanID       string   `json:"span_id"`
	Procedure    string   `json:"procedure"`
	ParentSpanID string   `json:"parent_span_id,omitempty"`
	Status       string   `json:"status"`
	FirstStep    string   `json:"first_step"`
	LastStep     string   `json:"last_step"`
	Steps        []string `json:"steps"`
	SessionID    string   `json:"session_id,omitempty"`
	StartedAt    string   `json:"started_at"`
	CompletedAt  string   `json:"completed_at,omitempty"`
	SuspendedAt  string   `json:"suspended_at,omitempty"`
}

// Open reports whether the span is still open (active or suspended).
func (s *Span) Open() bool {
	return s.Status == StatusActive || s.Status == StatusSuspended
}

// Event is the typed record for one events row. Events are immutable
// breadcrumbs: created once, never updated.
type Event struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Procedure string `json:"procedure"`
	Phase     string `json:"phase,omitempty"`
	EventType string `json:"event_type"`
	SessionID string `json:"session_id,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// DecodedPayload returns the payload as structured data when it parses as
// JSON, or the raw string otherwise. Empty payloads decode to nil.
func (e *Event) DecodedPayload() any {
	return decodePayload(e.Payload)
}
