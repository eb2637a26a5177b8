package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/store"
)

// ErrNoSnapshot is returned when no mutation was recorded at or before the
// requested seq.
var ErrNoSnapshot = errors.New("journal: no snapshot at or before seq")

// SnapshotAt returns the state recorded by the last mutation with
// seq <= at, together with that mutation's seq.
func (j *Journal) SnapshotAt(ctx context.Context, at int64) (ir.IRObject, int64, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+mutationColumns+`
		FROM mutations
		WHERE seq <= ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, at)

	rec, err := scanMutation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w %d", ErrNoSnapshot, at)
	}
	if err != nil {
		return nil, 0, err
	}
	return rec.State, rec.Seq, nil
}

// TravelTo replaces s's state with the snapshot recorded at or before seq.
func (j *Journal) TravelTo(ctx context.Context, s *store.Store, seq int64) error {
	state, _, err := j.SnapshotAt(ctx, seq)
	if err != nil {
		return fmt.Errorf("travel to %d: %w", seq, err)
	}
	if err := s.ReplaceState(state); err != nil {
		return fmt.Errorf("travel to %d: %w", seq, err)
	}
	return nil
}

// EventType distinguishes mutation and action entries of a flow.
type EventType int

const (
	EventAction EventType = iota
	EventMutation
)

// String returns the event type as a string.
func (t EventType) String() string {
	switch t {
	case EventAction:
		return "action"
	case EventMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// Event is one entry of a merged flow timeline.
type Event struct {
	Type     EventType
	Seq      int64
	Mutation *ir.MutationRecord
	Action   *ir.ActionRecord
}

// ReplayFlow returns a flow's actions and mutations as one timeline ordered
// by seq. For equal seq, actions come first; action phases keep their
// write order.
func (j *Journal) ReplayFlow(ctx context.Context, flowToken string) ([]Event, error) {
	flow, err := j.ReadFlow(ctx, flowToken)
	if err != nil {
		return nil, err
	}
	return Timeline(flow), nil
}

// Timeline merges a flow's actions and mutations in ReplayFlow order.
func Timeline(flow Flow) []Event {
	events := make([]Event, 0, len(flow.Actions)+len(flow.Mutations))
	for i := range flow.Actions {
		events = append(events, Event{Type: EventAction, Seq: flow.Actions[i].Seq, Action: &flow.Actions[i]})
	}
	for i := range flow.Mutations {
		events = append(events, Event{Type: EventMutation, Seq: flow.Mutations[i].Seq, Mutation: &flow.Mutations[i]})
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		if a.Seq != b.Seq {
			if a.Seq < b.Seq {
				return -1
			}
			return 1
		}
		return int(a.Type) - int(b.Type)
	})
	return events
}

// LastSeq returns the highest seq recorded in the journal. A store
// resuming an existing journal starts its clock here (store.NewClockAt).
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(seq), 0) FROM mutations),
			(SELECT COALESCE(MAX(seq), 0) FROM actions)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// ListFlowTokens returns all distinct non-empty flow tokens, sorted.
func (j *Journal) ListFlowTokens(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT flow_token FROM mutations WHERE flow_token != ''
		UNION
		SELECT flow_token FROM actions WHERE flow_token != ''
		ORDER BY flow_token
	`)
	if err != nil {
		return nil, fmt.Errorf("list flow tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan flow token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow tokens: %w", err)
	}
	return tokens, nil
}
