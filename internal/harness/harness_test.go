package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func TestRun_AppendsToActiveSpan(t *testing.T) {
	scenario := &Scenario{
		Name:        "append",
		Description: "Two steps of one procedure share a span.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "gather"},
			{Op: OpEnter, Procedure: "research", Step: "synthesize"},
			{Op: OpEnd},
		},
		Assertions: []Assertion{
			{Type: AssertSpanCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Spans, 1)
	sp := result.Spans[0]
	assert.Equal(t, "span-0001", sp.SpanID)
	assert.Equal(t, store.StatusCompleted, sp.Status)
	assert.Equal(t, []string{"gather", "synthesize"}, sp.Steps)
	assert.Equal(t, "2024-01-01T00:00:00Z", sp.StartedAt)
	assert.Equal(t, "2024-01-01T00:00:04Z", sp.CompletedAt)

	require.Len(t, result.Events, 3)
	assert.Equal(t, store.EventPhaseEnter, result.Events[0].EventType)
	assert.Equal(t, store.EventSessionEnd, result.Events[2].EventType)
}

func TestRun_SwitchSuspendsAndParents(t *testing.T) {
	scenario := &Scenario{
		Name:        "switch",
		Description: "A procedure switch suspends the outgoing span.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "gather"},
			{Op: OpEnter, Procedure: "writing", Step: "draft"},
			{Op: OpEnd},
		},
		Assertions: []Assertion{
			{Type: AssertSpanParent, Procedure: "writing", Parent: "research"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Spans, 2)
	research, writing := result.Spans[0], result.Spans[1]
	assert.Equal(t, research.SpanID, writing.ParentSpanID)

	// Completion does not erase the suspension stamp; the span's shape
	// records that it sat suspended before the session swept it.
	assert.Equal(t, store.StatusCompleted, research.Status)
	assert.Equal(t, "2024-01-01T00:00:03Z", research.SuspendedAt)
	assert.Equal(t, research.CompletedAt, writing.CompletedAt)

	require.Len(t, result.Notes, 1)
	assert.Contains(t, result.Notes[0], "Entered from research")
}

func TestRun_ResumeClearsSuspension(t *testing.T) {
	scenario := &Scenario{
		Name:        "resume",
		Description: "Re-entry resumes the suspended span.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "gather"},
			{Op: OpSuspend, Procedure: "research"},
			{Op: OpEnter, Procedure: "research", Step: "decide"},
		},
		Assertions: []Assertion{
			{Type: AssertSpanStatus, Procedure: "research", Status: store.StatusActive},
			{Type: AssertSpanSteps, Procedure: "research", Steps: []string{"gather", "decide"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Spans, 1)
	assert.Empty(t, result.Spans[0].SuspendedAt)
}

func TestRun_GateExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "gate_mismatch",
		Description: "A wrong expect clause fails the scenario.",
		Session:     "s1",
		Contracts: ContractSet{
			"research": {
				"gather": {Produces: []string{"sources"}},
				"decide": {Consumes: []string{"sources"}},
			},
		},
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "plan"},
			{Op: OpGate, Procedure: "research", Step: "decide", Expect: &ExpectClause{Allowed: boolPtr(true)}},
		},
		Assertions: []Assertion{
			{Type: AssertSpanCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected allowed=true, got allowed=false")

	require.Len(t, result.Decisions, 1)
	assert.False(t, result.Decisions[0].Allowed)
}

func TestRun_GateExpectReasonMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "gate_reason_mismatch",
		Description: "An expect reason must appear in the decision.",
		Session:     "s1",
		Contracts: ContractSet{
			"research": {
				"gather": {Produces: []string{"sources"}},
				"decide": {Consumes: []string{"sources"}},
			},
		},
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "plan"},
			{Op: OpGate, Procedure: "research", Step: "decide", Expect: &ExpectClause{
				Allowed: boolPtr(false),
				Reason:  "produced by 'review'",
			}},
		},
		Assertions: []Assertion{
			{Type: AssertSpanCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "does not contain")
}

func TestRun_AssertionFailureFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_assertion",
		Description: "A failed assertion marks the result failed.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "gather"},
		},
		Assertions: []Assertion{
			{Type: AssertSpanStatus, Procedure: "research", Status: store.StatusCompleted},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion failed: span_status")
}

func TestRun_UnknownOpErrors(t *testing.T) {
	// LoadScenario rejects this earlier; a hand-built scenario hits the
	// executor's own guard.
	scenario := &Scenario{
		Name:        "unknown_op",
		Description: "Unknown ops are harness errors, not failures.",
		Session:     "s1",
		Ops:         []Op{{Op: "teleport"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "teleport"`)
}

func TestRun_EmitWritesPayload(t *testing.T) {
	scenario := &Scenario{
		Name:        "emit",
		Description: "Emit ops append breadcrumbs with payloads.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEmit, Procedure: "research", Step: "gather", Type: "checkpoint", Payload: map[string]any{"source": "scenario"}},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, EventType: "checkpoint", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Events, 1)
	ev := result.Events[0]
	assert.Equal(t, "checkpoint", ev.EventType)
	assert.Equal(t, "gather", ev.Phase)
	assert.JSONEq(t, `{"source": "scenario"}`, ev.Payload)
}

func TestRun_UntrackedProcedureStaysInvisible(t *testing.T) {
	scenario := &Scenario{
		Name:        "untracked",
		Description: "Underscore procedures never produce spans.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "_memory", Step: "recall"},
		},
		Assertions: []Assertion{
			{Type: AssertSpanCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Spans)
	assert.Empty(t, result.Events)
}

func TestRun_DelegatePromptScansRefs(t *testing.T) {
	scenario := &Scenario{
		Name:        "delegate_prompt",
		Description: "Prompt scanning records referenced steps.",
		Session:     "s1",
		Ops: []Op{
			{Op: OpEnter, Procedure: "research", Step: "plan"},
			{Op: OpDelegate, Prompt: "Read skills/research/steps/gather.md and skills/research/steps/synthesize.md first."},
		},
		Assertions: []Assertion{
			{Type: AssertSpanSteps, Procedure: "research", Steps: []string{"plan", "gather", "synthesize"}},
			{Type: AssertEventCount, EventType: store.EventDelegate, Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestWriteContracts_RoundTripsThroughParser(t *testing.T) {
	dir := t.TempDir()

	err := writeContracts(dir, ContractSet{
		"research": {
			"gather": {Produces: []string{"sources"}},
			"decide": {Consumes: []string{"sources"}, Optional: true},
		},
	})
	require.NoError(t, err)

	c := contract.Parse(dir, "research")
	producer, ok := c.ProducerOf("sources")
	require.True(t, ok)
	assert.Equal(t, "gather", producer)
	assert.Equal(t, []string{"sources"}, c.ConsumesOf("decide"))
	assert.True(t, c.IsOptional("decide"))
}
