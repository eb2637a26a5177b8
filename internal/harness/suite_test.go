package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "cart.yaml"),
		filepath.Join("testdata", "scenarios", "counter.yaml"),
		filepath.Join("testdata", "scenarios", "dynamic.yaml"),
	}, paths)
}

func TestDiscoverScenarios_MissingRoot(t *testing.T) {
	_, err := DiscoverScenarios(filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
}

func TestRunSuite_AllPass(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)

	res, err := RunSuite(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Passed)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Failures)
}

func TestRunSuite_ReportsFailuresInOrder(t *testing.T) {
	dir := t.TempDir()
	shop, err := filepath.Abs(shopModule)
	require.NoError(t, err)

	bad := filepath.Join(dir, "a_bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\n"), 0o644))

	wrong := filepath.Join(dir, "b_wrong.yaml")
	require.NoError(t, os.WriteFile(wrong, []byte(`
name: wrong
description: count is not 5
module: `+shop+`
steps: [{commit: increment}]
assertions: [{type: final_state, path: count, expect: 5}]
`), 0o644))

	paths, err := DiscoverScenarios(dir)
	require.NoError(t, err)

	res, err := RunSuite(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, bad, res.Failures[0].Path)
	assert.Contains(t, res.Failures[0].Errors[0], "failed to load scenario")
	assert.Equal(t, "wrong", res.Failures[1].Scenario)
	assert.Contains(t, res.Failures[1].Errors[0], "final_state")
}

func TestRunSuite_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunSuite(ctx, []string{"testdata/scenarios/counter.yaml"})
	require.ErrorIs(t, err, context.Canceled)
}
