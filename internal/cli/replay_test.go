package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
)

func TestReplayLatest(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	state := result.State.(map[string]any)
	assert.Equal(t, float64(3), state["count"])
	assert.Equal(t, result.Seq, result.SnapshotSeq)
	assert.NotEmpty(t, result.StateHash)
}

func TestReplayAtSeq(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--seq", "1")
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, int64(1), result.SnapshotSeq)
	assert.Equal(t, float64(1), result.State.(map[string]any)["count"])

	out, err = execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--seq", "0")
	require.NoError(t, err)
	decodeResponse(t, out, &result)
	assert.Equal(t, float64(0), result.State.(map[string]any)["count"], "seq 0 is the initial state")
}

func TestReplayText(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--seq", "1")
	require.NoError(t, err)

	want := ir.IRObject{
		"count": ir.IRInt(1),
		"flags": ir.IRObject{"open": ir.IRBool(false)},
		"cart":  ir.IRObject{"items": ir.IRArray{}},
	}
	data, err := ir.MarshalCanonical(want)
	require.NoError(t, err)

	assert.Contains(t, out, "State at seq 1 (from mutation at seq 1)")
	assert.Contains(t, out, "hash: "+ir.MustSnapshotHash(want))
	assert.Contains(t, out, string(data))
}

func TestReplayVerify(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db, "--verify")
	require.NoError(t, err)

	var result VerifyResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 4, result.Checked, "init row and three commits")
	assert.Empty(t, result.Mismatches)
}

func TestReplayMissingJournal(t *testing.T) {
	_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
