package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	FlowToken string
	Type      string // optional filter on mutation/action type
	From      int64
	To        int64
	Errors    bool
}

// TraceEvent is one row of a flow timeline.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"` // "action" or "mutation"
	Type    string `json:"type"`
	Phase   string `json:"phase,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
	Hash    string `json:"state_hash,omitempty"`
}

// TraceResult is the output of trace --flow.
type TraceResult struct {
	FlowToken string       `json:"flow_token"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats summarises a flow.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Mutations   int  `json:"mutations"`
	Actions     int  `json:"actions"`
	Failed      int  `json:"failed"`
	IsComplete  bool `json:"is_complete"`
}

// FlowSummary is one entry of trace without --flow.
type FlowSummary struct {
	FlowToken string `json:"flow_token"`
	Mutations int    `json:"mutations"`
	Actions   int    `json:"actions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled flows",
		Long: `Show what a journal recorded.

Without --flow, lists every flow token with its mutation and action
counts. With --flow, prints the flow's timeline in seq order: each
dispatch's phases and the mutations it committed.

Examples:
  statetree trace --db ./journal.db
  statetree trace --db ./journal.db --flow 0190c3c2-...
  statetree trace --db ./journal.db --flow 0190c3c2-... --type cart/push
  statetree trace --db ./journal.db --flow 0190c3c2-... --from 10 --to 20
  statetree trace --db ./journal.db --errors`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show events of this type")
	cmd.Flags().Int64Var(&opts.From, "from", -1, "only show events at or after this seq")
	cmd.Flags().Int64Var(&opts.To, "to", -1, "only show events at or before this seq")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "list reported store errors instead")

	return cmd
}

// openJournal opens an existing journal. A missing file is a command
// error rather than a fresh empty journal.
func openJournal(path string, opts *RootOptions, cmd *cobra.Command) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}
	logger, err := opts.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(path, journal.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	j, err := openJournal(opts.Database, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	switch {
	case opts.Errors:
		return traceErrors(ctx, j, formatter)
	case opts.FlowToken == "":
		return traceFlows(ctx, j, formatter)
	}

	flow, err := j.Query(ctx, flowFilter(opts))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query flow", err)
	}

	result := TraceResult{FlowToken: opts.FlowToken, Timeline: buildTimeline(journal.Timeline(flow))}
	result.Stats = computeStats(result.Timeline)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if len(result.Timeline) == 0 {
		fmt.Fprintf(formatter.Writer, "No events found for flow: %s\n", opts.FlowToken)
		return nil
	}
	printTraceText(formatter, result)
	return nil
}

func traceFlows(ctx context.Context, j *journal.Journal, f *OutputFormatter) error {
	tokens, err := j.ListFlowTokens(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list flows", err)
	}

	flows := make([]FlowSummary, 0, len(tokens))
	for _, token := range tokens {
		flow, err := j.ReadFlow(ctx, token)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read flow", err)
		}
		flows = append(flows, FlowSummary{
			FlowToken: token,
			Mutations: len(flow.Mutations),
			Actions:   countBefore(flow.Actions),
		})
	}

	if f.JSON() {
		return f.Success(map[string]any{"flows": flows})
	}
	if len(flows) == 0 {
		fmt.Fprintln(f.Writer, "No flows found")
		return nil
	}
	for _, fl := range flows {
		fmt.Fprintf(f.Writer, "%s  mutations=%d actions=%d\n", fl.FlowToken, fl.Mutations, fl.Actions)
	}
	return nil
}

func traceErrors(ctx context.Context, j *journal.Journal, f *OutputFormatter) error {
	errs, err := j.ReadErrors(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read errors", err)
	}
	if f.JSON() {
		return f.Success(map[string]any{"errors": errs})
	}
	if len(errs) == 0 {
		fmt.Fprintln(f.Writer, "No errors recorded")
		return nil
	}
	for _, e := range errs {
		fmt.Fprintf(f.Writer, "[%d] %s %s\n", e.Seq, e.Code, e.Message)
	}
	return nil
}

// flowFilter selects the rows of one flow narrowed by --type, --from and
// --to.
func flowFilter(opts *TraceOptions) journal.Predicate {
	preds := []journal.Predicate{
		journal.Equals{Field: "flow_token", Value: ir.IRString(opts.FlowToken)},
		journal.SeqRange{From: opts.From, To: opts.To},
	}
	if opts.Type != "" {
		preds = append(preds, journal.Equals{Field: "type", Value: ir.IRString(opts.Type)})
	}
	return journal.And{Predicates: preds}
}

// buildTimeline flattens merged journal events.
func buildTimeline(events []journal.Event) []TraceEvent {
	timeline := []TraceEvent{}
	for _, ev := range events {
		switch ev.Type {
		case journal.EventMutation:
			m := ev.Mutation
			timeline = append(timeline, TraceEvent{
				Seq:     m.Seq,
				Kind:    ev.Type.String(),
				Type:    m.Type,
				Payload: ir.ToGo(m.Payload),
				Hash:    m.StateHash,
			})
		case journal.EventAction:
			a := ev.Action
			timeline = append(timeline, TraceEvent{
				Seq:     a.Seq,
				Kind:    ev.Type.String(),
				Type:    a.Type,
				Phase:   string(a.Phase),
				Payload: ir.ToGo(a.Payload),
				Error:   a.Error,
			})
		}
	}
	return timeline
}

// computeStats counts dispatches by their before phase. A flow is
// complete when every dispatch reached after or error.
func computeStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline)}
	open := 0
	for _, ev := range timeline {
		switch {
		case ev.Kind == journal.EventMutation.String():
			stats.Mutations++
		case ev.Phase == string(ir.ActionPhaseBefore):
			stats.Actions++
			open++
		case ev.Phase == string(ir.ActionPhaseAfter):
			open--
		case ev.Phase == string(ir.ActionPhaseError):
			stats.Failed++
			open--
		}
	}
	stats.IsComplete = open == 0
	return stats
}

func countBefore(actions []ir.ActionRecord) int {
	n := 0
	for _, a := range actions {
		if a.Phase == ir.ActionPhaseBefore {
			n++
		}
	}
	return n
}

func printTraceText(f *OutputFormatter, r TraceResult) {
	fmt.Fprintf(f.Writer, "Flow: %s\n\n", r.FlowToken)
	for _, ev := range r.Timeline {
		label := ev.Kind
		if ev.Phase != "" {
			label += ":" + ev.Phase
		}
		line := fmt.Sprintf("[%d] %-16s %s", ev.Seq, label, ev.Type)
		if ev.Payload != nil {
			line += fmt.Sprintf(" %v", ev.Payload)
		}
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		fmt.Fprintln(f.Writer, line)
	}
	fmt.Fprintf(f.Writer, "\n%d event(s): %d mutation(s), %d action(s), %d failed, complete=%t\n",
		r.Stats.TotalEvents, r.Stats.Mutations, r.Stats.Actions, r.Stats.Failed, r.Stats.IsComplete)
}
