package store

import (
	"log/slog"

	"github.com/roach88/statetree/internal/reactive"
)

// Option configures a Store at construction.
type Option func(*Store)

// WithStrict enables strict mode: any state write outside a mutation
// handler is a violation.
func WithStrict() Option {
	return func(s *Store) {
		s.strict = true
	}
}

// WithProduction marks an optimized build. Strict violations are then
// ignored instead of panicking.
func WithProduction() Option {
	return func(s *Store) {
		s.production = true
	}
}

// WithPlugins applies plugins once after the initial install, in order.
func WithPlugins(plugins ...Plugin) Option {
	return func(s *Store) {
		s.initialPlugins = append(s.initialPlugins, plugins...)
	}
}

// WithDevtools attaches a diagnostics hook. It is installed after all
// other plugins.
func WithDevtools(hook DevtoolsHook) Option {
	return func(s *Store) {
		s.devtools = hook
	}
}

// WithEngine supplies the reactive engine. The engine is bound to the
// store and cannot serve a second one. Default: a fresh engine.
func WithEngine(e *reactive.Engine) Option {
	return func(s *Store) {
		s.eng = e
	}
}

// WithLogger sets the logger for reported errors and routing detail.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithFlowGenerator sets the flow token source. Default: UUIDv7Generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(s *Store) {
		s.flowGen = g
	}
}

// WithClock sets the logical clock. Use NewClockAt to continue an existing
// journal's sequence.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// CallOption configures a single Commit or Dispatch.
type CallOption func(*callOptions)

type callOptions struct {
	root bool
}

// Root makes a local commit or dispatch target the root namespace.
// It has no effect on calls made directly on the Store.
func Root() CallOption {
	return func(o *callOptions) {
		o.root = true
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RegisterOption configures RegisterModule.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	preserveState bool
}

// PreserveState keeps state already present at the registration path
// instead of grafting the module's initial state over it.
func PreserveState() RegisterOption {
	return func(o *registerOptions) {
		o.preserveState = true
	}
}
