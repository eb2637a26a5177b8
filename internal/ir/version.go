package ir

import "fmt"

// Version constants for the snapshot format and runtime.
const (
	// IRVersion is the snapshot schema version.
	IRVersion = "1"

	// RuntimeVersion is the statetree runtime version.
	RuntimeVersion = "0.1.0"
)

func goTypeName(v any) string {
	return fmt.Sprintf("%T", v)
}
