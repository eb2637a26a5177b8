package testutil

import "github.com/roach88/statetree/internal/store"

// DefaultFlowToken is used when NewFixedFlowGenerator is given "".
const DefaultFlowToken = "test-flow-default"

// FixedFlowGenerator returns the same flow token on every call, so every
// commit and dispatch of a run shares one flow and a journal written twice
// by the same script is byte-identical.
//
// Unlike store.FixedGenerator it never runs out of tokens.
type FixedFlowGenerator struct {
	token string
}

var _ store.FlowTokenGenerator = (*FixedFlowGenerator)(nil)

// NewFixedFlowGenerator creates a generator that always returns token.
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = DefaultFlowToken
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
