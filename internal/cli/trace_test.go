package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceListsFlows(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var data struct {
		Flows []FlowSummary `json:"flows"`
	}
	decodeResponse(t, out, &data)
	require.Len(t, data.Flows, 2)

	var mutations, actions int
	for _, f := range data.Flows {
		mutations += f.Mutations
		actions += f.Actions
	}
	assert.Equal(t, 3, mutations)
	assert.Equal(t, 1, actions)
}

func TestTraceFlowTimeline(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), shopModule, "incrementTwice", "--db", db)
	require.NoError(t, err)
	var invoked InvokeResult
	decodeResponse(t, out, &invoked)

	out, err = execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db, "--flow", invoked.FlowToken)
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	assert.Equal(t, invoked.FlowToken, result.FlowToken)
	assert.Equal(t, 2, result.Stats.Mutations)
	assert.Equal(t, 1, result.Stats.Actions)
	assert.Zero(t, result.Stats.Failed)
	assert.True(t, result.Stats.IsComplete)

	require.NotEmpty(t, result.Timeline)
	first := result.Timeline[0]
	assert.Equal(t, "action", first.Kind)
	assert.Equal(t, "before", first.Phase)
	assert.Equal(t, "incrementTwice", first.Type)
}

func TestTraceFlowTypeFilterText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), shopModule, "incrementTwice", "--db", db)
	require.NoError(t, err)
	var invoked InvokeResult
	decodeResponse(t, out, &invoked)

	out, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--flow", invoked.FlowToken, "--type", "increment")
	require.NoError(t, err)
	assert.Contains(t, out, "Flow: "+invoked.FlowToken)
	assert.Contains(t, out, "2 event(s): 2 mutation(s), 0 action(s)")
	assert.NotContains(t, out, "incrementTwice")
}

func TestTraceUnknownFlow(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--flow", "no-such-flow")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found for flow: no-such-flow")
}

func TestTraceErrors(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--errors")
	require.NoError(t, err)
	assert.Contains(t, out, "No errors recorded")

	_, err = execute(NewInvokeCommand(&RootOptions{Format: "text"}), shopModule, "nope", "--commit", "--db", db)
	require.Error(t, err)

	out, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--errors")
	require.NoError(t, err)
	assert.Contains(t, out, "UNKNOWN_MUTATION")
}

func TestTraceMissingJournal(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTraceFlowSeqRange(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), shopModule, "incrementTwice", "--db", db)
	require.NoError(t, err)
	var invoked InvokeResult
	decodeResponse(t, out, &invoked)

	// dispatch at seq 1, its commits at 2 and 3
	out, err = execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db, "--flow", invoked.FlowToken, "--from", "3")
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, int64(3), result.Timeline[0].Seq)
	assert.Equal(t, "increment", result.Timeline[0].Type)
}
