package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waymark/internal/gate"
)

// writeStepFile writes one step definition under dir.
func writeStepFile(t *testing.T, dir, procedure, step, frontmatter string) {
	t.Helper()
	stepsDir := filepath.Join(dir, procedure, "steps")
	require.NoError(t, os.MkdirAll(stepsDir, 0o755))
	content := "---\n" + frontmatter + "\n---\n\n# " + step + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(stepsDir, step+".md"), []byte(content), 0o644))
}

// researchContracts builds the standard two-step fixture: gather produces
// sources, decide consumes them.
func researchContracts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeStepFile(t, dir, "research", "gather", "produces: [sources]")
	writeStepFile(t, dir, "research", "decide", "consumes: [sources]")
	return dir
}

func TestGateAllowsWithoutActiveSpan(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	contractsDir := researchContracts(t)

	// Nothing was entered; casual inspection passes.
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", DB: dbPath, ContractsDir: contractsDir}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ allowed")
}

func TestGateAllowsWithoutContract(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	rootOpts := &RootOptions{Format: "text", DB: dbPath, ContractsDir: t.TempDir()}

	eng := seedEngine(t, dbPath)
	eng.EnterStep(context.Background(), "research", "plan", "s1")

	buf := &bytes.Buffer{}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ allowed")
}

func TestGateBlocksUnmetDependency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	contractsDir := researchContracts(t)
	rootOpts := &RootOptions{Format: "text", DB: dbPath, ContractsDir: contractsDir}

	// The session is mid-procedure but has not visited gather.
	eng := seedEngine(t, dbPath)
	eng.EnterStep(context.Background(), "research", "plan", "s1")

	buf := &bytes.Buffer{}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ blocked")
	assert.Contains(t, output, "Step 'decide' requires 'sources' (produced by 'gather'). Complete those steps first.")
}

func TestGateAllowsAfterProducerVisited(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	contractsDir := researchContracts(t)
	rootOpts := &RootOptions{Format: "text", DB: dbPath, ContractsDir: contractsDir}

	eng := seedEngine(t, dbPath)
	eng.EnterStep(context.Background(), "research", "gather", "s1")

	buf := &bytes.Buffer{}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ allowed")
}

func TestGateResolvesRef(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	contractsDir := researchContracts(t)
	rootOpts := &RootOptions{Format: "text", DB: dbPath, ContractsDir: contractsDir}

	eng := seedEngine(t, dbPath)
	eng.EnterStep(context.Background(), "research", "plan", "s1")

	buf := &bytes.Buffer{}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--ref", "skills/research/steps/decide.md", "--session", "s1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ blocked")
}

func TestGateBlockedJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	contractsDir := researchContracts(t)
	rootOpts := &RootOptions{Format: "json", DB: dbPath, ContractsDir: contractsDir}

	eng := seedEngine(t, dbPath)
	eng.EnterStep(context.Background(), "research", "plan", "s1")

	buf := &bytes.Buffer{}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The decision itself is the payload; the exit code carries the block.
	var resp struct {
		Status string        `json:"status"`
		Data   gate.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Data.Allowed)
	require.Len(t, resp.Data.Missing, 1)
	assert.Equal(t, "sources", resp.Data.Missing[0].Artifact)
	assert.Equal(t, "gather", resp.Data.Missing[0].Producer)
}

func TestGateFailsOpenOnUnopenableDatabase(t *testing.T) {
	contractsDir := researchContracts(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", DB: badDBPath(t), ContractsDir: contractsDir}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--procedure", "research", "--step", "decide", "--session", "s1"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ allowed")
}

func TestGateRequiresTarget(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--session", "s1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
