package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statetree/internal/ir"
)

// ParseModule parses a CUE module description. v is the module struct
// itself, e.g. value.LookupPath(cue.ParsePath("module")).
func ParseModule(v cue.Value) (*ModuleSpec, error) {
	return parseModule(v, "", "module")
}

func parseModule(v cue.Value, key, field string) (*ModuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "module must be a struct", Pos: v.Pos()}
	}

	spec := &ModuleSpec{Key: key, State: ir.IRObject{}}

	if nsVal := v.LookupPath(cue.ParsePath("namespaced")); nsVal.Exists() {
		ns, err := nsVal.Bool()
		if err != nil {
			return nil, &CompileError{Field: field + ".namespaced", Message: "must be a bool", Pos: nsVal.Pos()}
		}
		spec.Namespaced = ns
	}

	if stateVal := v.LookupPath(cue.ParsePath("state")); stateVal.Exists() {
		state, err := spec.literal(stateVal, field+".state")
		if err != nil {
			return nil, err
		}
		obj, ok := state.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: field + ".state", Message: "state must be a struct", Pos: stateVal.Pos()}
		}
		spec.State = obj
	}

	var err error
	if spec.Mutations, err = parseMutations(spec, v, field); err != nil {
		return nil, err
	}
	if spec.Actions, err = parseActions(spec, v, field); err != nil {
		return nil, err
	}
	if spec.Getters, err = parseGetters(spec, v, field); err != nil {
		return nil, err
	}

	if modsVal := v.LookupPath(cue.ParsePath("modules")); modsVal.Exists() {
		iter, err := modsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			child, err := parseModule(iter.Value(), iter.Label(), field+".modules."+iter.Label())
			if err != nil {
				return nil, err
			}
			spec.Modules = append(spec.Modules, child)
		}
	}

	return spec, nil
}

func parseMutations(spec *ModuleSpec, v cue.Value, field string) ([]MutationSpec, error) {
	var out []MutationSpec
	err := eachField(v, "mutations", func(name string, mv cue.Value) error {
		f := field + ".mutations." + name
		m := MutationSpec{Name: name}
		var err error
		if m.Op, err = stringField(mv, "op", f, true); err != nil {
			return err
		}
		if m.Path, err = stringField(mv, "path", f, false); err != nil {
			return err
		}
		if m.Handler, err = stringField(mv, "handler", f, false); err != nil {
			return err
		}
		if val := mv.LookupPath(cue.ParsePath("value")); val.Exists() {
			if m.Value, err = spec.literal(val, f+".value"); err != nil {
				return err
			}
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func parseActions(spec *ModuleSpec, v cue.Value, field string) ([]ActionSpec, error) {
	var out []ActionSpec
	err := eachField(v, "actions", func(name string, av cue.Value) error {
		f := field + ".actions." + name
		a := ActionSpec{Name: name}
		var err error
		if a.Root, err = boolField(av, "root", f); err != nil {
			return err
		}
		if a.Result, err = stringField(av, "result", f, false); err != nil {
			return err
		}
		if a.Handler, err = stringField(av, "handler", f, false); err != nil {
			return err
		}

		if stepsVal := av.LookupPath(cue.ParsePath("steps")); stepsVal.Exists() {
			iter, err := stepsVal.List()
			if err != nil {
				return &CompileError{Field: f + ".steps", Message: "steps must be a list", Pos: stepsVal.Pos()}
			}
			for i := 0; iter.Next(); i++ {
				step, err := parseStep(spec, iter.Value(), fmt.Sprintf("%s.steps[%d]", f, i))
				if err != nil {
					return err
				}
				a.Steps = append(a.Steps, step)
			}
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func parseStep(spec *ModuleSpec, v cue.Value, field string) (StepSpec, error) {
	var s StepSpec
	var err error
	if s.Commit, err = stringField(v, "commit", field, false); err != nil {
		return s, err
	}
	if s.Dispatch, err = stringField(v, "dispatch", field, false); err != nil {
		return s, err
	}
	if s.Root, err = boolField(v, "root", field); err != nil {
		return s, err
	}
	if pv := v.LookupPath(cue.ParsePath("payload")); pv.Exists() {
		if s.Payload, err = spec.literal(pv, field+".payload"); err != nil {
			return s, err
		}
	}
	return s, nil
}

func parseGetters(spec *ModuleSpec, v cue.Value, field string) ([]GetterSpec, error) {
	var out []GetterSpec
	err := eachField(v, "getters", func(name string, gv cue.Value) error {
		f := field + ".getters." + name
		g := GetterSpec{Name: name}
		var err error
		if g.Op, err = stringField(gv, "op", f, true); err != nil {
			return err
		}
		if g.Path, err = stringField(gv, "path", f, false); err != nil {
			return err
		}
		if g.Getter, err = stringField(gv, "getter", f, false); err != nil {
			return err
		}
		if g.Handler, err = stringField(gv, "handler", f, false); err != nil {
			return err
		}
		if byVal := gv.LookupPath(cue.ParsePath("by")); byVal.Exists() {
			if byVal.IncompleteKind() == cue.FloatKind {
				spec.floatFields = append(spec.floatFields, f+".by")
			} else {
				n, err := byVal.Int64()
				if err != nil {
					return &CompileError{Field: f + ".by", Message: "by must be an int", Pos: byVal.Pos()}
				}
				g.By = &n
			}
		}
		out = append(out, g)
		return nil
	})
	return out, err
}

// eachField iterates the struct at name in declaration order.
func eachField(v cue.Value, name string, fn func(string, cue.Value) error) error {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func stringField(v cue.Value, name, field string, required bool) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		if required {
			return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + name, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func boolField(v cue.Value, name, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{Field: field + "." + name, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, nil
}

// literal converts a concrete CUE value to IR. Float literals are recorded
// on spec for Validate and replaced by null.
func (spec *ModuleSpec) literal(v cue.Value, field string) (ir.IRValue, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, notConcrete(v, field)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, notConcrete(v, field)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		spec.floatFields = append(spec.floatFields, field)
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, notConcrete(v, field)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := spec.literal(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := iter.Label()
			elem, err := spec.literal(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	default:
		return nil, notConcrete(v, field)
	}
}

func notConcrete(v cue.Value, field string) error {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
