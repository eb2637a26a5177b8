package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runWatchCancelled runs watch with an already cancelled context so it
// returns as soon as the watcher is set up.
func runWatchCancelled(t *testing.T, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(ctx))
	return out.String()
}

func TestWatchStartsAndStops(t *testing.T) {
	out := runWatchCancelled(t, shopModule)
	assert.Contains(t, out, "Watching "+shopModule+" (5 mutation(s), 3 action(s))")
	assert.Contains(t, out, "Stopped after 0 reload(s)")
	assert.NotContains(t, out, "statetree_store")
}

func TestWatchPrintsMetrics(t *testing.T) {
	out := runWatchCancelled(t, shopModule, "--metrics")
	assert.Contains(t, out, "# TYPE statetree_store_dispatches_in_flight gauge")
}

func TestWatchResumesJournal(t *testing.T) {
	db := seedJournal(t)
	out := runWatchCancelled(t, shopModule, "--journal", db)
	assert.Contains(t, out, "Watching")
}

func TestWatchInvalidModule(t *testing.T) {
	_, err := execute(NewWatchCommand(&RootOptions{Format: "text"}), brokenModule)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
