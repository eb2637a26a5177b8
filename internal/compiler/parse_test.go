package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
)

func parseString(t *testing.T, src string) *ModuleSpec {
	t.Helper()
	spec, err := ParseSource([]byte(src), "test.cue")
	require.NoError(t, err)
	return spec
}

func TestParseSourceBasic(t *testing.T) {
	spec := parseString(t, `
module: {
	state: {count: 0, name: "x", tags: ["a"], nested: on: true}
	mutations: increment: {op: "add", path: "count", value: 1}
	getters: doubled: {op: "mul", path: "count", by: 2}
}`)

	assert.Equal(t, "", spec.Key)
	assert.False(t, spec.Namespaced)
	assert.Equal(t, ir.IRObject{
		"count":  ir.IRInt(0),
		"name":   ir.IRString("x"),
		"tags":   ir.IRArray{ir.IRString("a")},
		"nested": ir.IRObject{"on": ir.IRBool(true)},
	}, spec.State)

	require.Len(t, spec.Mutations, 1)
	assert.Equal(t, MutationSpec{Name: "increment", Op: OpAdd, Path: "count", Value: ir.IRInt(1)}, spec.Mutations[0])

	require.Len(t, spec.Getters, 1)
	require.NotNil(t, spec.Getters[0].By)
	assert.Equal(t, int64(2), *spec.Getters[0].By)
}

func TestParseSourceModulesKeepDeclarationOrder(t *testing.T) {
	spec := parseString(t, `
module: modules: {
	zeta: namespaced: true
	alpha: {}
	mid: modules: inner: {}
}`)

	require.Len(t, spec.Modules, 3)
	assert.Equal(t, "zeta", spec.Modules[0].Key)
	assert.True(t, spec.Modules[0].Namespaced)
	assert.Equal(t, "alpha", spec.Modules[1].Key)
	assert.Equal(t, "mid", spec.Modules[2].Key)
	require.Len(t, spec.Modules[2].Modules, 1)
	assert.Equal(t, "inner", spec.Modules[2].Modules[0].Key)
	assert.Equal(t, ir.IRObject{}, spec.Modules[1].State)
}

func TestParseSourceActionSteps(t *testing.T) {
	spec := parseString(t, `
module: actions: go: {
	root: true
	steps: [{commit: "a"}, {dispatch: "b", payload: {n: 1}, root: true}]
	result: "r"
}`)

	require.Len(t, spec.Actions, 1)
	a := spec.Actions[0]
	assert.True(t, a.Root)
	assert.Equal(t, "r", a.Result)
	require.Len(t, a.Steps, 2)
	assert.Equal(t, StepSpec{Commit: "a"}, a.Steps[0])
	assert.Equal(t, StepSpec{Dispatch: "b", Payload: ir.IRObject{"n": ir.IRInt(1)}, Root: true}, a.Steps[1])
}

func TestParseSourceFloatsRecordedForValidate(t *testing.T) {
	spec := parseString(t, `
module: {
	state: price: 1.5
	mutations: bump: {op: "add", path: "price", value: 0.5}
}`)

	assert.Equal(t, ir.IRNull{}, spec.State["price"])
	assert.ElementsMatch(t, []string{"module.state.price", "module.mutations.bump.value"}, spec.floatFields)
}

func TestParseSourceErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no module", `other: 1`, "module"},
		{"module not struct", `module: 1`, "module"},
		{"state not struct", `module: state: 1`, "module.state"},
		{"missing op", `module: mutations: m: {path: "x"}`, "module.mutations.m.op"},
		{"op not string", `module: mutations: m: {op: 1}`, "module.mutations.m.op"},
		{"namespaced not bool", `module: modules: a: namespaced: "yes"`, "module.modules.a.namespaced"},
		{"non-concrete state", `module: state: n: int`, "module.state.n"},
		{"steps not list", `module: actions: a: steps: 1`, "module.actions.a.steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource([]byte(tt.src), "test.cue")
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestParseSourceSyntaxError(t *testing.T) {
	_, err := ParseSource([]byte(`module: {`), "broken.cue")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestParseDir(t *testing.T) {
	spec, err := ParseDir("testdata")
	require.NoError(t, err)

	require.Len(t, spec.Modules, 1)
	assert.Equal(t, "cart", spec.Modules[0].Key)
	assert.Empty(t, Validate(spec, nil))
}

func TestParseDirMissing(t *testing.T) {
	_, err := ParseDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestParseDirFromTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package x\nmodule: state: a: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte("package x\nmodule: state: b: 2\n"), 0o644))

	spec, err := ParseDir(dir)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRInt(1), "b": ir.IRInt(2)}, spec.State)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "module.state", Message: "bad"}
	assert.Equal(t, "module.state: bad", err.Error())
}
