package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/waymark/internal/gate"
	"github.com/roach88/waymark/internal/store"
)

// Snapshot is the golden-file projection of a scenario run: the
// session's final spans and events, plus the notes and gate decisions
// the ops produced along the way.
type Snapshot struct {
	Scenario  string          `json:"scenario"`
	Session   string          `json:"session"`
	Spans     []store.Span    `json:"spans"`
	Events    []store.Event   `json:"events"`
	Notes     []string        `json:"notes,omitempty"`
	Decisions []gate.Decision `json:"decisions,omitempty"`
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file lives at testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors; golden
// mismatches fail the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's snapshot against the scenario's
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		Scenario:  scenario.Name,
		Session:   scenario.Session,
		Spans:     result.Spans,
		Events:    result.Events,
		Notes:     result.Notes,
		Decisions: result.Decisions,
	}

	data, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
