package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
)

func TestWriteMutationRoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	state := ir.IRObject{"count": ir.IRInt(1), "name": ir.IRString("café")}
	rec := ir.MutationRecord{
		Seq:       1,
		FlowToken: "flow-1",
		Type:      "increment",
		Payload:   ir.IRObject{"by": ir.IRInt(1 << 60)},
		State:     state,
	}
	require.NoError(t, j.WriteMutation(ctx, rec))

	got, err := j.ReadMutations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, ir.MustMutationID("flow-1", "increment", rec.Payload, 1), got[0].ID)
	assert.Equal(t, ir.MustSnapshotHash(state), got[0].StateHash)
	assert.Equal(t, rec.Payload, got[0].Payload, "large ints survive storage")
	assert.Equal(t, state, got[0].State)

	one, err := j.ReadMutation(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, got[0], one)
}

func TestWriteMutationIdempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	rec := ir.MutationRecord{Seq: 1, FlowToken: "f", Type: "t", Payload: ir.IRNull{}, State: ir.IRObject{}}
	require.NoError(t, j.WriteMutation(ctx, rec))
	require.NoError(t, j.WriteMutation(ctx, rec))

	got, err := j.ReadMutations(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteMutationRequiresState(t *testing.T) {
	j := createTestJournal(t)
	err := j.WriteMutation(context.Background(), ir.MutationRecord{Seq: 1, Type: "t"})
	assert.ErrorContains(t, err, "missing state snapshot")
}

func TestWriteActionPhases(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	before := ir.ActionRecord{Seq: 3, FlowToken: "f", Type: "load", Payload: ir.IRString("x"), Phase: ir.ActionPhaseBefore}
	failed := before
	failed.Phase = ir.ActionPhaseError
	failed.Error = "boom"

	require.NoError(t, j.WriteAction(ctx, before))
	require.NoError(t, j.WriteAction(ctx, failed))
	require.NoError(t, j.WriteAction(ctx, before), "duplicate phase ignored")

	got, err := j.ReadActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ir.ActionRecord{before, failed}, got)
}

func TestWriteActionRejectsUnknownPhase(t *testing.T) {
	j := createTestJournal(t)
	err := j.WriteAction(context.Background(), ir.ActionRecord{Seq: 1, Type: "a", Phase: "during"})
	assert.Error(t, err)
}

func TestWriteErrors(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.WriteError(ctx, ErrorRecord{Seq: 2, Code: "UNKNOWN_MUTATION", Message: "nope"}))
	require.NoError(t, j.WriteError(ctx, ErrorRecord{Seq: 2, Code: "ERROR", Message: "other"}))

	got, err := j.ReadErrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ErrorRecord{
		{Seq: 2, Code: "UNKNOWN_MUTATION", Message: "nope"},
		{Seq: 2, Code: "ERROR", Message: "other"},
	}, got)
}

func TestReadEmpty(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	muts, err := j.ReadMutations(ctx)
	require.NoError(t, err)
	assert.NotNil(t, muts)
	assert.Empty(t, muts)

	flow, err := j.ReadFlow(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, flow.Mutations)
	assert.NotNil(t, flow.Actions)

	tokens, err := j.ListFlowTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, tokens)
}
