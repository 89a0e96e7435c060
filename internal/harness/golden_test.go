package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioGoldens runs every canonical scenario and compares its
// snapshot against the committed golden file. The scenarios double as
// executable documentation of the tracking semantics: append, switch,
// resume, and gated delegation.
//
// To regenerate after an intentional behavior change:
//
//	go test ./internal/harness -update
func TestScenarioGoldens(t *testing.T) {
	names := []string{
		"single_procedure",
		"procedure_switch",
		"suspend_resume",
		"gated_delegation",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
		})
	}
}

// TestRunIsDeterministic runs the same scenario twice and expects
// identical snapshots. The fixed clock and sequential ids exist for
// exactly this property; golden comparison depends on it.
func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "procedure_switch.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Spans, second.Spans)
	assert.Equal(t, first.Events, second.Events)
	assert.Equal(t, first.Notes, second.Notes)
}
