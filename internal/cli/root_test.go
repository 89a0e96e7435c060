package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waymark/internal/config"
	"github.com/roach88/waymark/internal/engine"
	"github.com/roach88/waymark/internal/store"
	"github.com/roach88/waymark/internal/testutil"
)

// testConfig returns fixed defaults so flag tests do not depend on the
// host environment.
func testConfig() config.Config {
	return config.Config{
		DBPath:        "waymark.db",
		ContractsDir:  "contracts",
		BusyTimeoutMS: 5000,
		LogLevel:      "info",
	}
}

// seedEngine opens dbPath and returns a deterministic engine for seeding
// fixtures: second-stepped clock, sequential ids, discarded logs. The
// seeding handle closes when the test ends.
func seedEngine(t *testing.T, dbPath string) *engine.Engine {
	t.Helper()
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return engine.New(s,
		engine.WithClock(testutil.NewSecondClock()),
		engine.WithIDSource(testutil.NewSeqIDs()),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// badDBPath returns a database path that cannot be opened: its parent is
// a regular file. A merely absent directory is not enough, Open creates
// those.
func badDBPath(t *testing.T) string {
	t.Helper()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))
	return filepath.Join(blocker, "waymark.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	require.NotNil(t, cmd)
	assert.Equal(t, "waymark", cmd.Use)
	assert.Contains(t, cmd.Long, "SQLite")
	assert.Contains(t, cmd.Long, "fail open")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	commands := []string{"enter", "suspend", "end", "gate", "delegate", "spans", "events", "vet"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	// Config supplies the defaults for the path flags.
	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "waymark.db", dbFlag.DefValue)

	contractsFlag := cmd.PersistentFlags().Lookup("contracts-dir")
	require.NotNil(t, contractsFlag)
	assert.Equal(t, "contracts", contractsFlag.DefValue)
}

func TestEnterCommandFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	enterCmd, _, err := cmd.Find([]string{"enter"})
	require.NoError(t, err)

	for _, name := range []string{"ref", "procedure", "step", "session"} {
		flag := enterCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "enter should have --%s", name)
	}
}

func TestDelegateCommandFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	delegateCmd, _, err := cmd.Find([]string{"delegate"})
	require.NoError(t, err)

	promptFlag := delegateCmd.Flags().Lookup("prompt")
	require.NotNil(t, promptFlag)

	refFlag := delegateCmd.Flags().Lookup("ref")
	require.NotNil(t, refFlag)
}

func TestEventsCommandFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	eventsCmd, _, err := cmd.Find([]string{"events"})
	require.NoError(t, err)

	for _, name := range []string{"date", "procedure", "session", "type", "limit"} {
		flag := eventsCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "events should have --%s", name)
	}

	limitFlag := eventsCmd.Flags().Lookup("limit")
	assert.Equal(t, "0", limitFlag.DefValue)
}

func TestVetCommandFlags(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	vetCmd, _, err := cmd.Find([]string{"vet"})
	require.NoError(t, err)

	procedureFlag := vetCmd.Flags().Lookup("procedure")
	require.NotNil(t, procedureFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand(testConfig())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "invalid", "events"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
