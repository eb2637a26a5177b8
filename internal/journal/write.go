package journal

import (
	"context"
	"fmt"

	"github.com/roach88/statetree/internal/ir"
)

// ErrorRecord is one error reported by the store.
type ErrorRecord struct {
	Seq     int64  `json:"seq"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteMutation inserts a mutation row. rec.State is required; the state
// hash is computed when rec.StateHash is empty. Duplicate IDs are ignored.
func (j *Journal) WriteMutation(ctx context.Context, rec ir.MutationRecord) error {
	if rec.State == nil {
		return fmt.Errorf("write mutation %s: missing state snapshot", rec.Type)
	}

	payloadJSON, err := marshalValue(rec.Payload)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	stateJSON, err := marshalValue(rec.State)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}

	if rec.StateHash == "" {
		if rec.StateHash, err = ir.SnapshotHash(rec.State); err != nil {
			return fmt.Errorf("write mutation: %w", err)
		}
	}
	if rec.ID == "" {
		if rec.ID, err = ir.MutationID(rec.FlowToken, rec.Type, rec.Payload, rec.Seq); err != nil {
			return fmt.Errorf("write mutation: %w", err)
		}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO mutations
		(id, seq, flow_token, type, payload, state, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.FlowToken,
		rec.Type,
		payloadJSON,
		stateJSON,
		rec.StateHash,
	)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	return nil
}

// WriteAction inserts one action phase. A phase already written for the
// same seq is ignored.
func (j *Journal) WriteAction(ctx context.Context, rec ir.ActionRecord) error {
	payloadJSON, err := marshalValue(rec.Payload)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO actions
		(seq, flow_token, type, payload, phase, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq, phase) DO NOTHING
	`,
		rec.Seq,
		rec.FlowToken,
		rec.Type,
		payloadJSON,
		string(rec.Phase),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// WriteError inserts an error row.
func (j *Journal) WriteError(ctx context.Context, rec ErrorRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO errors (seq, code, message) VALUES (?, ?, ?)
	`, rec.Seq, rec.Code, rec.Message)
	if err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}
