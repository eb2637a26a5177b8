package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator generates flow tokens that correlate a dispatch with
// the commits it causes. Implemented by UUIDv7Generator (production),
// FixedGenerator and testutil.FixedFlowGenerator (tests).
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined flow tokens in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
//	gen := NewFixedGenerator("flow-1", "flow-2")
//	gen.Generate() // "flow-1"
//	gen.Generate() // "flow-2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token. Panics once all tokens
// have been consumed so a test that creates more flows than expected fails
// loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

type flowKey struct{}

// WithFlowToken returns a ctx carrying token. Commits and dispatches made
// with the returned ctx are stamped with it instead of a fresh token.
func WithFlowToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, flowKey{}, token)
}

// FlowTokenFrom returns the flow token carried by ctx.
func FlowTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(flowKey{}).(string)
	return token, ok && token != ""
}

// ensureFlow returns ctx stamped with a flow token, generating one when
// ctx has none.
func (s *Store) ensureFlow(ctx context.Context) (context.Context, string) {
	if token, ok := FlowTokenFrom(ctx); ok {
		return ctx, token
	}
	token := s.flowGen.Generate()
	return WithFlowToken(ctx, token), token
}
