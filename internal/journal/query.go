package journal

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// Predicate filters journal rows. Predicates compile to parameterized SQL;
// values are never interpolated.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// SeqRange matches rows with From <= seq <= To. A negative bound is open.
type SeqRange struct {
	From int64
	To   int64
}

func (SeqRange) predicateNode() {}

// And matches rows every predicate matches. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Columns a predicate may name, per table.
var (
	mutationFields = []string{"flow_token", "type", "seq", "state_hash"}
	actionFields   = []string{"flow_token", "type", "seq", "phase"}
)

// Query returns the mutations and action phases matching p, each ordered
// by seq. A field that only one table has (phase, state_hash) excludes
// the other table's rows.
func (j *Journal) Query(ctx context.Context, p Predicate) (Flow, error) {
	var flow Flow

	if where, args, ok, err := compileFilter(p, mutationFields); err != nil {
		return flow, err
	} else if ok {
		flow.Mutations, err = j.queryMutations(ctx, `
			SELECT `+mutationColumns+`
			FROM mutations
			WHERE `+where+`
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, args...)
		if err != nil {
			return flow, err
		}
	} else {
		flow.Mutations = []ir.MutationRecord{}
	}

	if where, args, ok, err := compileFilter(p, actionFields); err != nil {
		return flow, err
	} else if ok {
		flow.Actions, err = j.queryActions(ctx, `
			SELECT `+actionColumns+`
			FROM actions
			WHERE `+where+`
			ORDER BY seq ASC, id ASC
		`, args...)
		if err != nil {
			return flow, err
		}
	} else {
		flow.Actions = []ir.ActionRecord{}
	}
	return flow, nil
}

// compileFilter compiles p against a table's fields. ok is false when p
// names a field the table lacks, so no row of that table can match.
func compileFilter(p Predicate, fields []string) (where string, args []any, ok bool, err error) {
	if err := validatePredicate(p); err != nil {
		return "", nil, false, err
	}
	if !fieldsKnown(p, fields) {
		return "", nil, false, nil
	}
	where, args, err = compilePredicate(p)
	return where, args, err == nil, err
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if !slices.Contains(mutationFields, pred.Field) && !slices.Contains(actionFields, pred.Field) {
			return fmt.Errorf("journal: unknown field %q", pred.Field)
		}
		return nil
	case SeqRange:
		return nil
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("journal: unsupported predicate %T", p)
	}
}

func fieldsKnown(p Predicate, fields []string) bool {
	switch pred := p.(type) {
	case Equals:
		return slices.Contains(fields, pred.Field)
	case And:
		for _, sub := range pred.Predicates {
			if !fieldsKnown(sub, fields) {
				return false
			}
		}
	}
	return true
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		param, err := sqlParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
		}
		return pred.Field + " = ?", []any{param}, nil
	case SeqRange:
		var parts []string
		var args []any
		if pred.From >= 0 {
			parts = append(parts, "seq >= ?")
			args = append(args, pred.From)
		}
		if pred.To >= 0 {
			parts = append(parts, "seq <= ?")
			args = append(args, pred.To)
		}
		if len(parts) == 0 {
			return "1 = 1", nil, nil
		}
		return strings.Join(parts, " AND "), args, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		var parts []string
		var args []any
		for _, sub := range pred.Predicates {
			sql, subArgs, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sql+")")
			args = append(args, subArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, fmt.Errorf("journal: unsupported predicate %T", p)
	}
}

// sqlParam converts a scalar IR value to a driver value.
func sqlParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case nil, ir.IRNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("%T cannot be a query parameter", v)
	}
}
