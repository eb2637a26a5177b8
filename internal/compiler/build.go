package compiler

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"cuelang.org/go/cue"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

// BuildError wraps the validation errors that stopped a build.
type BuildError struct {
	Errors []ValidationError
}

func (e *BuildError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}

// CompileModule parses, validates and builds v in one step.
func CompileModule(v cue.Value, b Bindings) (*store.Definition, error) {
	spec, err := ParseModule(v)
	if err != nil {
		return nil, err
	}
	return Build(spec, b)
}

// Build turns a parsed module tree into a store definition. Declarative
// ops become closures; handler ops are looked up in b.
func Build(spec *ModuleSpec, b Bindings) (*store.Definition, error) {
	if errs := Validate(spec, &b); len(errs) > 0 {
		return nil, &BuildError{Errors: errs}
	}
	return buildDefinition(spec, b), nil
}

func buildDefinition(m *ModuleSpec, b Bindings) *store.Definition {
	state := m.State.Clone()
	def := &store.Definition{
		Namespaced: m.Namespaced,
		State:      func() ir.IRObject { return state.Clone() },
		Mutations:  make(map[string]store.MutationHandler, len(m.Mutations)),
		Actions:    make(map[string]store.Action, len(m.Actions)),
		Getters:    make(map[string]store.Getter, len(m.Getters)),
	}

	for _, mut := range m.Mutations {
		def.Mutations[mut.Name] = buildMutation(mut, b)
	}
	for _, a := range m.Actions {
		def.Actions[a.Name] = store.Action{Root: a.Root, Handler: buildAction(a, b)}
	}
	for _, g := range m.Getters {
		def.Getters[g.Name] = buildGetter(g, b)
	}

	if len(m.Modules) > 0 {
		def.Modules = make(map[string]*store.Definition, len(m.Modules))
		for _, child := range m.Modules {
			def.Modules[child.Key] = buildDefinition(child, b)
			def.Order = append(def.Order, child.Key)
		}
	}
	return def
}

func buildMutation(mut MutationSpec, b Bindings) store.MutationHandler {
	if mut.Op == OpHandler {
		return b.Mutations[mut.Handler]
	}

	parent, leaf := splitDotted(mut.Path)
	fixed := mut.Value
	arg := func(payload any) any {
		if fixed != nil {
			return fixed
		}
		return payload
	}

	return func(_ context.Context, state *reactive.Object, payload any) {
		target := walkDotted(state, parent)
		if target == nil {
			panic(fmt.Sprintf("compiler: %s: path %q not found", mut.Name, mut.Path))
		}
		switch mut.Op {
		case OpSet:
			target.Set(leaf, arg(payload))
		case OpAdd:
			n, ok := asInt(arg(payload))
			if !ok {
				panic(fmt.Sprintf("compiler: %s: add needs an int, got %T", mut.Name, arg(payload)))
			}
			target.SetInt(leaf, target.Int(leaf)+n)
		case OpAppend:
			target.Append(leaf, arg(payload))
		case OpDelete:
			target.Delete(leaf)
		case OpToggle:
			target.Set(leaf, ir.IRBool(!target.Bool(leaf)))
		}
	}
}

func buildAction(a ActionSpec, b Bindings) store.ActionHandler {
	if a.Handler != "" {
		return b.Actions[a.Handler]
	}

	steps := a.Steps
	result := a.Result
	return func(ctx context.Context, ac *store.LocalContext, payload any) (any, error) {
		for i, step := range steps {
			arg := payload
			if step.Payload != nil {
				arg = ir.ToGo(step.Payload)
			}
			var opts []store.CallOption
			if step.Root {
				opts = append(opts, store.Root())
			}

			if step.Commit != "" {
				ac.Commit(ctx, step.Commit, arg, opts...)
				continue
			}
			if _, err := ac.Dispatch(ctx, step.Dispatch, arg, opts...).Await(ctx); err != nil {
				return nil, fmt.Errorf("step %d: dispatch %s: %w", i, step.Dispatch, err)
			}
		}
		if result == "" {
			return nil, nil
		}
		v, _ := ac.Getters().Get(result)
		return v, nil
	}
}

func buildGetter(g GetterSpec, b Bindings) store.Getter {
	switch g.Op {
	case OpHandler:
		return b.Getters[g.Handler]
	case OpGetter:
		name := g.Getter
		return func(_ *reactive.Object, getters store.Getters, _ *reactive.Object, _ store.Getters) any {
			v, _ := getters.Get(name)
			return v
		}
	}

	parent, leaf := splitDotted(g.Path)
	var by int64
	if g.By != nil {
		by = *g.By
	}
	op := g.Op
	return func(state *reactive.Object, _ store.Getters, _ *reactive.Object, _ store.Getters) any {
		v, ok := lookupDotted(state, parent, leaf)
		if !ok {
			return nil
		}
		switch op {
		case OpLen:
			switch val := v.(type) {
			case ir.IRArray:
				return int64(len(val))
			case ir.IRObject:
				return int64(len(val))
			case ir.IRString:
				return int64(utf8.RuneCountInString(string(val)))
			}
			return int64(0)
		case OpMul:
			n, _ := v.(ir.IRInt)
			return int64(n) * by
		default:
			return ir.ToGo(v)
		}
	}
}

func walkDotted(obj *reactive.Object, path string) *reactive.Object {
	if path == "" {
		return obj
	}
	return obj.Walk(strings.Split(path, "."))
}

func lookupDotted(obj *reactive.Object, parent, leaf string) (ir.IRValue, bool) {
	if leaf == "" {
		return obj.Snapshot(), true
	}
	target := walkDotted(obj, parent)
	if target == nil {
		return nil, false
	}
	return target.Value(leaf)
}

func asInt(v any) (int64, bool) {
	iv, err := ir.FromGo(v)
	if err != nil {
		return 0, false
	}
	n, ok := iv.(ir.IRInt)
	return int64(n), ok
}
