package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownOp        = "E101" // mutation or getter op not recognized
	ErrInvalidPath      = "E102" // path missing or does not resolve into state
	ErrUnboundHandler   = "E103" // handler name not supplied in Bindings
	ErrUnknownReference = "E104" // step, result or getter op names an unknown local type
	ErrInvalidModuleKey = "E105" // empty key, "/" in key, or key shadows a state field
	ErrFloatForbidden   = "E106" // float literal anywhere in the module
	ErrInvalidStep      = "E107" // step must set exactly one of commit or dispatch
	ErrKindMismatch     = "E108" // op applied to a field of the wrong kind
)

// ValidationError represents a module validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a parsed module tree. It returns every problem found
// rather than stopping at the first. With nil bindings, handler ops are
// not checked against Go code.
func Validate(spec *ModuleSpec, bindings *Bindings) []ValidationError {
	var errs []ValidationError
	spec.Walk(func(path []string, m *ModuleSpec) {
		errs = append(errs, validateModule(path, m, bindings)...)
	})
	return errs
}

func validateModule(path []string, m *ModuleSpec, b *Bindings) []ValidationError {
	var errs []ValidationError
	prefix := fieldPrefix(path)

	for _, f := range m.floatFields {
		errs = append(errs, ValidationError{
			Field:   f,
			Message: "float literal forbidden, use int instead",
			Code:    ErrFloatForbidden,
		})
	}

	for _, child := range m.Modules {
		switch {
		case child.Key == "" || strings.Contains(child.Key, "/"):
			errs = append(errs, ValidationError{
				Field:   prefix + "modules",
				Message: fmt.Sprintf("invalid module key %q", child.Key),
				Code:    ErrInvalidModuleKey,
			})
		case hasKey(m.State, child.Key):
			errs = append(errs, ValidationError{
				Field:   prefix + "modules." + child.Key,
				Message: fmt.Sprintf("module key %q shadows a state field", child.Key),
				Code:    ErrInvalidModuleKey,
			})
		}
	}

	mutations := make(map[string]bool, len(m.Mutations))
	for _, mut := range m.Mutations {
		mutations[mut.Name] = true
		errs = append(errs, validateMutation(prefix+"mutations."+mut.Name, m.State, mut, b)...)
	}

	getters := make(map[string]bool, len(m.Getters))
	for _, g := range m.Getters {
		getters[g.Name] = true
	}
	for _, g := range m.Getters {
		errs = append(errs, validateGetter(prefix+"getters."+g.Name, m.State, g, getters, b)...)
	}

	actions := make(map[string]bool, len(m.Actions))
	for _, a := range m.Actions {
		actions[a.Name] = true
	}
	for _, a := range m.Actions {
		f := prefix + "actions." + a.Name
		if a.Handler != "" {
			if len(a.Steps) > 0 {
				errs = append(errs, ValidationError{
					Field:   f,
					Message: "handler and steps are mutually exclusive",
					Code:    ErrInvalidStep,
				})
			}
			if b != nil && b.Actions[a.Handler] == nil {
				errs = append(errs, unbound(f, "action", a.Handler))
			}
			continue
		}
		for i, step := range a.Steps {
			errs = append(errs, validateStep(fmt.Sprintf("%s.steps[%d]", f, i), step, mutations, actions)...)
		}
		if a.Result != "" && !getters[a.Result] {
			errs = append(errs, ValidationError{
				Field:   f + ".result",
				Message: fmt.Sprintf("unknown local getter %q", a.Result),
				Code:    ErrUnknownReference,
			})
		}
	}

	return errs
}

func validateMutation(f string, state ir.IRObject, mut MutationSpec, b *Bindings) []ValidationError {
	if mut.Op == OpHandler {
		if mut.Handler == "" {
			return []ValidationError{{Field: f + ".handler", Message: "handler name is required", Code: ErrUnboundHandler}}
		}
		if b != nil && b.Mutations[mut.Handler] == nil {
			return []ValidationError{unbound(f, "mutation", mut.Handler)}
		}
		return nil
	}

	var want func(ir.IRValue) bool
	switch mut.Op {
	case OpSet:
		// set may create the leaf; only the parent must exist.
		if mut.Path == "" {
			return []ValidationError{missingPath(f)}
		}
		parent, _ := splitDotted(mut.Path)
		if _, ok := resolve(state, parent); !ok {
			return []ValidationError{badPath(f, mut.Path)}
		}
		return nil
	case OpDelete:
		want = func(ir.IRValue) bool { return true }
	case OpAdd:
		want = isKind[ir.IRInt]
	case OpAppend:
		want = isKind[ir.IRArray]
	case OpToggle:
		want = isKind[ir.IRBool]
	default:
		return []ValidationError{{Field: f + ".op", Message: fmt.Sprintf("unknown mutation op %q", mut.Op), Code: ErrUnknownOp}}
	}
	return checkTarget(f, state, mut.Path, mut.Op, want)
}

func validateGetter(f string, state ir.IRObject, g GetterSpec, getters map[string]bool, b *Bindings) []ValidationError {
	switch g.Op {
	case OpHandler:
		if g.Handler == "" {
			return []ValidationError{{Field: f + ".handler", Message: "handler name is required", Code: ErrUnboundHandler}}
		}
		if b != nil && b.Getters[g.Handler] == nil {
			return []ValidationError{unbound(f, "getter", g.Handler)}
		}
		return nil
	case OpGetter:
		if !getters[g.Getter] || g.Getter == g.Name {
			return []ValidationError{{
				Field:   f + ".getter",
				Message: fmt.Sprintf("unknown local getter %q", g.Getter),
				Code:    ErrUnknownReference,
			}}
		}
		return nil
	case OpGet:
		if g.Path == "" {
			return nil
		}
		return checkTarget(f, state, g.Path, g.Op, func(ir.IRValue) bool { return true })
	case OpLen:
		return checkTarget(f, state, g.Path, g.Op, func(v ir.IRValue) bool {
			return isKind[ir.IRArray](v) || isKind[ir.IRObject](v) || isKind[ir.IRString](v)
		})
	case OpMul:
		errs := checkTarget(f, state, g.Path, g.Op, isKind[ir.IRInt])
		if g.By == nil {
			errs = append(errs, ValidationError{Field: f + ".by", Message: "by is required for mul", Code: ErrInvalidPath})
		}
		return errs
	default:
		return []ValidationError{{Field: f + ".op", Message: fmt.Sprintf("unknown getter op %q", g.Op), Code: ErrUnknownOp}}
	}
}

func validateStep(f string, step StepSpec, mutations, actions map[string]bool) []ValidationError {
	if (step.Commit == "") == (step.Dispatch == "") {
		return []ValidationError{{Field: f, Message: "exactly one of commit or dispatch is required", Code: ErrInvalidStep}}
	}
	// Root steps target the global namespace; they are resolved at runtime.
	if step.Root {
		return nil
	}
	if step.Commit != "" && !mutations[step.Commit] {
		return []ValidationError{{Field: f + ".commit", Message: fmt.Sprintf("unknown local mutation %q", step.Commit), Code: ErrUnknownReference}}
	}
	if step.Dispatch != "" && !actions[step.Dispatch] {
		return []ValidationError{{Field: f + ".dispatch", Message: fmt.Sprintf("unknown local action %q", step.Dispatch), Code: ErrUnknownReference}}
	}
	return nil
}

func checkTarget(f string, state ir.IRObject, path, op string, want func(ir.IRValue) bool) []ValidationError {
	if path == "" {
		return []ValidationError{missingPath(f)}
	}
	v, ok := resolve(state, path)
	if !ok {
		return []ValidationError{badPath(f, path)}
	}
	if !want(v) {
		return []ValidationError{{
			Field:   f + ".path",
			Message: fmt.Sprintf("op %q cannot apply to %s at %q", op, kindName(v), path),
			Code:    ErrKindMismatch,
		}}
	}
	return nil
}

func missingPath(f string) ValidationError {
	return ValidationError{Field: f + ".path", Message: "path is required", Code: ErrInvalidPath}
}

func badPath(f, path string) ValidationError {
	return ValidationError{Field: f + ".path", Message: fmt.Sprintf("path %q does not resolve into state", path), Code: ErrInvalidPath}
}

func unbound(f, kind, name string) ValidationError {
	return ValidationError{
		Field:   f + ".handler",
		Message: fmt.Sprintf("no %s handler bound as %q", kind, name),
		Code:    ErrUnboundHandler,
	}
}

func isKind[T ir.IRValue](v ir.IRValue) bool {
	_, ok := v.(T)
	return ok
}

func kindName(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRNull:
		return "null"
	case ir.IRString:
		return "string"
	case ir.IRInt:
		return "int"
	case ir.IRBool:
		return "bool"
	case ir.IRArray:
		return "array"
	case ir.IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func hasKey(obj ir.IRObject, key string) bool {
	_, ok := obj[key]
	return ok
}

// resolve follows a dotted path through nested objects. The empty path
// resolves to obj itself.
func resolve(obj ir.IRObject, path string) (ir.IRValue, bool) {
	var cur ir.IRValue = obj
	if path == "" {
		return cur, true
	}
	for _, seg := range strings.Split(path, ".") {
		o, ok := cur.(ir.IRObject)
		if !ok {
			return nil, false
		}
		if cur, ok = o[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// splitDotted splits "a.b.c" into ("a.b", "c").
func splitDotted(path string) (parent, leaf string) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func fieldPrefix(path []string) string {
	if len(path) == 0 {
		return "module."
	}
	return "module.modules." + strings.Join(path, ".modules.") + "."
}
