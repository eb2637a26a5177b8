package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Seq      int64
	Verify   bool
}

// ReplayResult is the state a journal recorded at a seq.
type ReplayResult struct {
	Seq         int64  `json:"seq"`          // requested seq
	SnapshotSeq int64  `json:"snapshot_seq"` // seq of the mutation the state comes from
	StateHash   string `json:"state_hash"`
	State       any    `json:"state"`
}

// VerifyResult reports snapshot hashes that do not match their state.
type VerifyResult struct {
	Checked    int      `json:"checked"`
	Mismatches []string `json:"mismatches,omitempty"` // mutation IDs
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the state recorded at a seq",
		Long: `Print the root state as it was after the last mutation at or before
--seq (the latest seq by default). This is the state travel-to-state
restores.

With --verify, recompute every recorded snapshot hash instead and report
rows whose state does not match its hash.

Examples:
  statetree replay --db ./journal.db
  statetree replay --db ./journal.db --seq 12 --format json
  statetree replay --db ./journal.db --verify`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Seq, "seq", -1, "seq to replay to (default: latest)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify every recorded snapshot hash")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	j, err := openJournal(opts.Database, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.Verify {
		return runVerify(opts, j, cmd)
	}

	seq := opts.Seq
	if seq < 0 {
		seq, err = j.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
	}

	state, at, err := j.SnapshotAt(ctx, seq)
	if errors.Is(err, journal.ErrNoSnapshot) {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "no snapshot", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	hash, err := ir.SnapshotHash(state)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash snapshot", err)
	}
	result := ReplayResult{Seq: seq, SnapshotSeq: at, StateHash: hash, State: ir.ToGo(state)}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}
	fmt.Fprintf(formatter.Writer, "State at seq %d (from mutation at seq %d)\n", seq, at)
	fmt.Fprintf(formatter.Writer, "hash: %s\n", hash)
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

func runVerify(opts *ReplayOptions, j *journal.Journal, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	recs, err := j.ReadMutations(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read mutations", err)
	}

	result := VerifyResult{Checked: len(recs)}
	for _, rec := range recs {
		hash, err := ir.SnapshotHash(rec.State)
		if err != nil || hash != rec.StateHash {
			result.Mismatches = append(result.Mismatches, rec.ID)
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Checked %d snapshot(s)\n", result.Checked)
		for _, id := range result.Mismatches {
			fmt.Fprintf(formatter.Writer, "  mismatch: %s\n", id)
		}
	}

	if len(result.Mismatches) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d snapshot(s) do not match their hash", len(result.Mismatches)))
	}
	return nil
}
