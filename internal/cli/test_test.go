package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/harness"
)

func TestTestCommand_AllPass(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 scenario(s): 3 passed, 0 failed")
}

func TestTestCommand_SingleFileJSON(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), counterScript)
	require.NoError(t, err)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "cart*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 scenario(s): 1 passed, 0 failed")

	out, err = execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "zzz*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_Failure(t *testing.T) {
	shop, err := filepath.Abs(shopModule)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong_count
description: count is not 5
module: `+shop+`
steps: [{commit: increment}]
assertions: [{type: final_state, path: count, expect: 5}]
`), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL wrong_count")
	assert.Contains(t, out, "1 scenario(s): 0 passed, 1 failed")
}

func TestTestCommand_MissingPath(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
}
