package harness

import (
	"github.com/roach88/waymark/internal/gate"
	"github.com/roach88/waymark/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: every gate expect
	// clause matched and every assertion held.
	Pass bool `json:"pass"`

	// Errors contains expect and assertion failure messages. Empty if
	// Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notes collects the entry notes produced by enter ops, in order.
	Notes []string `json:"notes,omitempty"`

	// Decisions collects gate op decisions, in order.
	Decisions []gate.Decision `json:"decisions,omitempty"`

	// Spans is the session's final span set, oldest first.
	Spans []store.Span `json:"spans"`

	// Events is the session's final event log, oldest first.
	Events []store.Event `json:"events"`
}

// NewResult creates a new passing result. Used as the starting point
// for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddNotes appends entry notes to the collected note list.
func (r *Result) AddNotes(notes []string) {
	r.Notes = append(r.Notes, notes...)
}

// AddDecision appends a gate decision to the collected decision list.
func (r *Result) AddDecision(d gate.Decision) {
	r.Decisions = append(r.Decisions, d)
}
