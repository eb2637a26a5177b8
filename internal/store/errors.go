package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes lookup and invariant errors reported by a store.
type ErrorCode string

const (
	// CodeUnknownMutation indicates Commit named a type with no handlers.
	CodeUnknownMutation ErrorCode = "UNKNOWN_MUTATION"

	// CodeUnknownAction indicates Dispatch named a type with no handlers.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// CodeUnknownLocalMutation indicates a namespaced local commit whose
	// prefixed type has no handlers.
	CodeUnknownLocalMutation ErrorCode = "UNKNOWN_LOCAL_MUTATION"

	// CodeUnknownLocalAction indicates a namespaced local dispatch whose
	// prefixed type has no handlers.
	CodeUnknownLocalAction ErrorCode = "UNKNOWN_LOCAL_ACTION"

	// CodeDuplicateGetter indicates two modules declared the same getter type.
	CodeDuplicateGetter ErrorCode = "DUPLICATE_GETTER"

	// CodeStaticModule indicates an attempt to unregister a module that was
	// not registered at runtime.
	CodeStaticModule ErrorCode = "STATIC_MODULE"

	// CodeHotAdd indicates a hot update introduced a module that does not
	// exist yet. The module is ignored until a full reload.
	CodeHotAdd ErrorCode = "HOT_ADD"

	// CodeStrictViolation indicates state changed outside a mutation handler.
	CodeStrictViolation ErrorCode = "STRICT_VIOLATION"
)

// Error is a non-fatal lookup or invariant error. Stores report these to
// the logger and the devtools hook; Commit never returns them.
type Error struct {
	Code    ErrorCode
	Message string

	// Type is the mutation, action or getter type involved, if any.
	Type string

	// Path is the module path involved, if any.
	Path []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Type != "" {
		fmt.Fprintf(&b, " (type=%s)", e.Type)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (path=%s)", strings.Join(e.Path, "/"))
	}
	return b.String()
}

// BuildError is a structural problem in a module definition. It is fatal:
// store construction or registration stops.
type BuildError struct {
	Path    []string
	Message string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("module build: %s", e.Message)
	}
	return fmt.Sprintf("module build [%s]: %s", strings.Join(e.Path, "."), e.Message)
}

// PanicError wraps a value recovered from a panicking action handler.
type PanicError struct {
	Type  string
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("action %q panicked: %v", e.Type, e.Value)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsUnknownMutation returns true if err reports an unknown mutation type.
func IsUnknownMutation(err error) bool {
	return CodeOf(err) == CodeUnknownMutation
}

// IsUnknownAction returns true if err reports an unknown action type.
func IsUnknownAction(err error) bool {
	return CodeOf(err) == CodeUnknownAction
}

// IsStrictViolation returns true if err is a strict-mode violation.
func IsStrictViolation(err error) bool {
	return CodeOf(err) == CodeStrictViolation
}

// IsBuildError returns true if err is a structural module error.
// Uses errors.As to handle wrapped errors.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
