package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/statetree/internal/ir"
)

const mutationColumns = `id, seq, flow_token, type, payload, state, state_hash`

const actionColumns = `seq, flow_token, type, payload, phase, error`

// ReadMutations returns every mutation row, the initial state row
// included, ordered by seq.
//
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) ReadMutations(ctx context.Context) ([]ir.MutationRecord, error) {
	return j.queryMutations(ctx, `
		SELECT `+mutationColumns+`
		FROM mutations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadActions returns every action phase row ordered by seq then phase.
func (j *Journal) ReadActions(ctx context.Context) ([]ir.ActionRecord, error) {
	return j.queryActions(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		ORDER BY seq ASC, id ASC
	`)
}

// ReadErrors returns every recorded error in insertion order.
func (j *Journal) ReadErrors(ctx context.Context) ([]ErrorRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, code, message FROM errors ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	records := []ErrorRecord{}
	for rows.Next() {
		var rec ErrorRecord
		if err := rows.Scan(&rec.Seq, &rec.Code, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return records, nil
}

// Flow is everything one flow token produced.
type Flow struct {
	FlowToken string              `json:"flow_token"`
	Mutations []ir.MutationRecord `json:"mutations"`
	Actions   []ir.ActionRecord   `json:"actions"`
}

// ReadFlow returns the mutations and action phases stamped with
// flowToken. Both slices are empty (not nil) for an unknown token.
func (j *Journal) ReadFlow(ctx context.Context, flowToken string) (Flow, error) {
	flow, err := j.Query(ctx, Equals{Field: "flow_token", Value: ir.IRString(flowToken)})
	flow.FlowToken = flowToken
	return flow, err
}

// ReadMutation retrieves a single mutation by ID.
// Returns sql.ErrNoRows if not found.
func (j *Journal) ReadMutation(ctx context.Context, id string) (ir.MutationRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+mutationColumns+`
		FROM mutations
		WHERE id = ?
	`, id)
	return scanMutation(row)
}

func (j *Journal) queryMutations(ctx context.Context, query string, args ...any) ([]ir.MutationRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	records := []ir.MutationRecord{}
	for rows.Next() {
		rec, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return records, nil
}

func (j *Journal) queryActions(ctx context.Context, query string, args ...any) ([]ir.ActionRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ir.ActionRecord{}
	for rows.Next() {
		var (
			rec     ir.ActionRecord
			payload string
			phase   string
		)
		if err := rows.Scan(&rec.Seq, &rec.FlowToken, &rec.Type, &payload, &phase, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		rec.Phase = ir.ActionPhase(phase)
		if rec.Payload, err = unmarshalValue(payload); err != nil {
			return nil, fmt.Errorf("action seq %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMutation(row rowScanner) (ir.MutationRecord, error) {
	var (
		rec     ir.MutationRecord
		payload string
		state   string
	)
	err := row.Scan(&rec.ID, &rec.Seq, &rec.FlowToken, &rec.Type, &payload, &state, &rec.StateHash)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan mutation: %w", err)
	}

	if rec.Payload, err = unmarshalValue(payload); err != nil {
		return rec, fmt.Errorf("mutation %s: %w", rec.ID, err)
	}
	if rec.State, err = unmarshalState(state); err != nil {
		return rec, fmt.Errorf("mutation %s: %w", rec.ID, err)
	}
	return rec, nil
}
