package compiler

import (
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/store"
)

// Mutation ops.
const (
	OpSet     = "set"
	OpAdd     = "add"
	OpAppend  = "append"
	OpDelete  = "delete"
	OpToggle  = "toggle"
	OpHandler = "handler"
)

// Getter ops (OpHandler is shared).
const (
	OpGet    = "get"
	OpLen    = "len"
	OpMul    = "mul"
	OpGetter = "getter"
)

// ModuleSpec is the parsed form of one CUE module description.
type ModuleSpec struct {
	Key        string         `json:"key,omitempty"`
	Namespaced bool           `json:"namespaced,omitempty"`
	State      ir.IRObject    `json:"state"`
	Mutations  []MutationSpec `json:"mutations,omitempty"`
	Actions    []ActionSpec   `json:"actions,omitempty"`
	Getters    []GetterSpec   `json:"getters,omitempty"`
	Modules    []*ModuleSpec  `json:"modules,omitempty"`

	// floatFields lists fields whose CUE literal was a float.
	floatFields []string
}

// MutationSpec declares one mutation.
type MutationSpec struct {
	Name    string     `json:"name"`
	Op      string     `json:"op"`
	Path    string     `json:"path,omitempty"`
	Value   ir.IRValue `json:"value,omitempty"`
	Handler string     `json:"handler,omitempty"`
}

// ActionSpec declares one action: either a list of steps or a bound Go
// handler.
type ActionSpec struct {
	Name    string     `json:"name"`
	Root    bool       `json:"root,omitempty"`
	Steps   []StepSpec `json:"steps,omitempty"`
	Result  string     `json:"result,omitempty"`
	Handler string     `json:"handler,omitempty"`
}

// StepSpec is one step of an action: a commit or a dispatch. A nil
// Payload forwards the action's payload.
type StepSpec struct {
	Commit   string     `json:"commit,omitempty"`
	Dispatch string     `json:"dispatch,omitempty"`
	Payload  ir.IRValue `json:"payload,omitempty"`
	Root     bool       `json:"root,omitempty"`
}

// GetterSpec declares one getter.
type GetterSpec struct {
	Name    string `json:"name"`
	Op      string `json:"op"`
	Path    string `json:"path,omitempty"`
	By      *int64 `json:"by,omitempty"`
	Getter  string `json:"getter,omitempty"`
	Handler string `json:"handler,omitempty"`
}

// Bindings supplies the Go handlers that "handler" ops refer to by name.
type Bindings struct {
	Mutations map[string]store.MutationHandler
	Actions   map[string]store.ActionHandler
	Getters   map[string]store.Getter
}

// Walk visits m and every descendant depth-first with its module path.
func (m *ModuleSpec) Walk(fn func(path []string, spec *ModuleSpec)) {
	walkSpec(nil, m, fn)
}

func walkSpec(path []string, m *ModuleSpec, fn func([]string, *ModuleSpec)) {
	fn(path, m)
	for _, child := range m.Modules {
		childPath := append(append([]string(nil), path...), child.Key)
		walkSpec(childPath, child, fn)
	}
}
