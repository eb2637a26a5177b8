package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	spec := parseString(t, `
module: {
	state: {count: 0, items: [], open: false, profile: name: ""}
	mutations: {
		inc: {op: "add", path: "count", value: 1}
		push: {op: "append", path: "items"}
		flip: {op: "toggle", path: "open"}
		rename: {op: "set", path: "profile.name"}
		fresh: {op: "set", path: "created"}
		drop: {op: "delete", path: "profile"}
	}
	getters: {
		n: {op: "len", path: "items"}
		all: {op: "get", path: ""}
		twice: {op: "mul", path: "count", by: 2}
		alias: {op: "getter", getter: "twice"}
	}
	actions: run: {steps: [{commit: "inc"}, {dispatch: "other", root: true}], result: "twice"}
}`)

	assert.Empty(t, Validate(spec, nil))
}

func TestValidateCollectsAll(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"unknown mutation op", `module: mutations: m: {op: "frob", path: "x"}`, []string{ErrUnknownOp}},
		{"unknown getter op", `module: getters: g: {op: "frob"}`, []string{ErrUnknownOp}},
		{"missing path", `module: mutations: m: {op: "add"}`, []string{ErrInvalidPath}},
		{"path not in state", `module: {state: a: 1, mutations: m: {op: "add", path: "b"}}`, []string{ErrInvalidPath}},
		{"set parent missing", `module: mutations: m: {op: "set", path: "a.b"}`, []string{ErrInvalidPath}},
		{"add on string", `module: {state: a: "x", mutations: m: {op: "add", path: "a"}}`, []string{ErrKindMismatch}},
		{"append on int", `module: {state: a: 1, mutations: m: {op: "append", path: "a"}}`, []string{ErrKindMismatch}},
		{"toggle on int", `module: {state: a: 1, mutations: m: {op: "toggle", path: "a"}}`, []string{ErrKindMismatch}},
		{"len on bool", `module: {state: a: true, getters: g: {op: "len", path: "a"}}`, []string{ErrKindMismatch}},
		{"mul without by", `module: {state: a: 1, getters: g: {op: "mul", path: "a"}}`, []string{ErrInvalidPath}},
		{"alias unknown", `module: getters: g: {op: "getter", getter: "nope"}`, []string{ErrUnknownReference}},
		{"alias self", `module: getters: g: {op: "getter", getter: "g"}`, []string{ErrUnknownReference}},
		{"float state", `module: state: a: 1.5`, []string{ErrFloatForbidden}},
		{"float by", `module: {state: a: 1, getters: g: {op: "mul", path: "a", by: 0.5}}`, []string{ErrFloatForbidden, ErrInvalidPath}},
		{"step neither", `module: actions: a: steps: [{}]`, []string{ErrInvalidStep}},
		{"step both", `module: {mutations: m: {op: "set", path: "x"}, actions: a: steps: [{commit: "m", dispatch: "a"}]}`, []string{ErrInvalidStep}},
		{"step unknown commit", `module: actions: a: steps: [{commit: "nope"}]`, []string{ErrUnknownReference}},
		{"step unknown dispatch", `module: actions: a: steps: [{dispatch: "nope"}]`, []string{ErrUnknownReference}},
		{"result unknown", `module: actions: a: result: "nope"`, []string{ErrUnknownReference}},
		{"handler without name", `module: mutations: m: op: "handler"`, []string{ErrUnboundHandler}},
		{"key shadows state", `module: {state: cart: 1, modules: cart: {}}`, []string{ErrInvalidModuleKey}},
		{"slash key", `module: modules: "a/b": {}`, []string{ErrInvalidModuleKey}},
		{
			"nested errors carry path",
			`module: modules: a: modules: b: mutations: m: {op: "frob"}`,
			[]string{ErrUnknownOp},
		},
		{
			"multiple errors",
			`module: {state: a: 1.5, mutations: m: {op: "frob"}, actions: x: steps: [{}]}`,
			[]string{ErrFloatForbidden, ErrUnknownOp, ErrInvalidStep},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := parseString(t, tt.src)
			assert.Equal(t, tt.want, codes(Validate(spec, nil)))
		})
	}
}

func TestValidateNestedField(t *testing.T) {
	spec := parseString(t, `module: modules: a: modules: b: mutations: m: {op: "frob"}`)
	errs := Validate(spec, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "module.modules.a.modules.b.mutations.m.op", errs[0].Field)
}

func TestValidateBindings(t *testing.T) {
	spec := parseString(t, `
module: {
	mutations: m: {op: "handler", handler: "doM"}
	actions: a: handler: "doA"
	getters: g: {op: "handler", handler: "doG"}
}`)

	assert.Empty(t, Validate(spec, nil), "nil bindings skip handler checks")

	errs := Validate(spec, &Bindings{})
	assert.Equal(t, []string{ErrUnboundHandler, ErrUnboundHandler, ErrUnboundHandler}, codes(errs))

	b := &Bindings{
		Mutations: map[string]store.MutationHandler{"doM": func(context.Context, *reactive.Object, any) {}},
		Actions: map[string]store.ActionHandler{"doA": func(context.Context, *store.LocalContext, any) (any, error) {
			return nil, nil
		}},
		Getters: map[string]store.Getter{"doG": func(*reactive.Object, store.Getters, *reactive.Object, store.Getters) any {
			return nil
		}},
	}
	assert.Empty(t, Validate(spec, b))
}

func TestValidateHandlerAndSteps(t *testing.T) {
	spec := parseString(t, `
module: {
	mutations: m: {op: "set", path: "x"}
	actions: a: {handler: "h", steps: [{commit: "m"}]}
}`)
	assert.Equal(t, []string{ErrInvalidStep}, codes(Validate(spec, nil)))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "module.state", Message: "bad", Code: ErrFloatForbidden}
	assert.Equal(t, "[E106] module.state: bad", err.Error())

	err.Line = 4
	assert.Equal(t, "[E106] line 4: module.state: bad", err.Error())
}
