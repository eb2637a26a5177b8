package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/component"
	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/journal"
	"github.com/roach88/statetree/internal/store"
	"github.com/roach88/statetree/internal/testutil"
)

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	bindings compiler.Bindings
	logger   *slog.Logger
}

// WithBindings supplies Go handlers for handler ops in the module.
func WithBindings(b compiler.Bindings) Option {
	return func(o *runOptions) {
		o.bindings = b
	}
}

// WithLogger sets the logger handed to the store and journal. Runs are
// silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = l
	}
}

// Harness executes one scenario against one store.
type Harness struct {
	store      *store.Store
	journal    *journal.Journal
	bindings   compiler.Bindings
	flow       string
	components map[string]*component.Component
}

// Run executes a scenario and returns its result.
//
// Each run builds a fresh store journaled into an in-memory database.
// The returned error covers problems that stop the run (a module that
// does not compile, a payload that cannot be converted); failed
// expectations are reported in Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	spec, err := compiler.LoadPath(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	def, err := compiler.Build(spec, o.bindings)
	if err != nil {
		return nil, fmt.Errorf("failed to build module: %w", err)
	}

	j, err := journal.Open(":memory:", journal.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	flowGen := testutil.NewFixedFlowGenerator(scenario.FlowToken)
	storeOpts := []store.Option{
		store.WithLogger(o.logger),
		store.WithFlowGenerator(flowGen),
		store.WithDevtools(j.Hook()),
	}
	if scenario.Strict {
		storeOpts = append(storeOpts, store.WithStrict())
	}
	s, err := store.New(def, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	h := &Harness{
		store:    s,
		journal:  j,
		bindings: o.bindings,
		flow:     flowGen.Generate(),
	}
	h.mountComponents(scenario.Components)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	trace, err := h.trace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = trace
	if state, ok := ir.ToGo(s.State().Snapshot()).(map[string]any); ok {
		result.State = state
	}

	actx := &AssertionContext{Store: s}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step and checks its expectations. Only errors that
// make the scenario itself unusable are returned.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	payload, err := convertValue(step.Payload)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}

	before, err := h.journal.ReadErrors(ctx)
	if err != nil {
		return err
	}

	s, opErr := h.storeFor(step)
	switch {
	case opErr != nil:
	case step.Kind() == StepCommit:
		opErr = h.commit(ctx, s, step.Commit, payload)
	case step.Kind() == StepDispatch:
		var value any
		value, opErr = s.Dispatch(ctx, step.Dispatch, payload).Await(ctx)
		if opErr == nil {
			result.Results[index] = value
			if step.ExpectResult != nil {
				checkResult(index, step, value, result)
			}
		}
	case step.Kind() == StepRegister:
		opErr = h.register(s, step)
	case step.Kind() == StepUnregister:
		opErr = s.UnregisterModule(splitPath(step.Unregister))
	case step.Kind() == StepTravelTo:
		opErr = h.journal.TravelTo(ctx, s, *step.TravelTo)
	default:
		return fmt.Errorf("step names no operation")
	}

	after, err := h.journal.ReadErrors(ctx)
	if err != nil {
		return err
	}
	stepErr := joinReported(opErr, after[len(before):])

	label := fmt.Sprintf("steps[%d] (%s)", index, describe(step))
	switch {
	case step.ExpectError == "" && stepErr != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, stepErr))
	case step.ExpectError != "" && stepErr == nil:
		result.AddError(fmt.Sprintf("%s: expected error %q, got none", label, step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(stepErr.Error(), step.ExpectError):
		result.AddError(fmt.Sprintf("%s: expected error %q, got: %v", label, step.ExpectError, stepErr))
	}
	return nil
}

// commit runs a commit, turning a handler panic into an error.
func (h *Harness) commit(ctx context.Context, s *store.Store, typ string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit %s panicked: %v", typ, r)
		}
	}()
	s.Commit(ctx, typ, payload)
	return nil
}

// mountComponents builds the component tree: a root owning the store and
// one node per path segment, each inheriting its parent's store.
func (h *Harness) mountComponents(paths []string) {
	root := component.New("root", nil, component.WithStore(h.store))
	h.components = map[string]*component.Component{"": root}
	for _, p := range paths {
		parent, key := root, ""
		for _, name := range splitPath(p) {
			key = strings.TrimPrefix(key+"/"+name, "/")
			c, ok := h.components[key]
			if !ok {
				c = component.New(name, parent)
				h.components[key] = c
			}
			parent = c
		}
	}
}

// storeFor resolves the store a step runs against through the component
// named by step.Via.
func (h *Harness) storeFor(step Step) (*store.Store, error) {
	c, ok := h.components[step.Via]
	if !ok {
		return nil, fmt.Errorf("component %q is not mounted", step.Via)
	}
	if s := c.Store(); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("component %q has no store", c.Path())
}

func (h *Harness) register(s *store.Store, step Step) error {
	spec, err := compiler.LoadPath(step.Module)
	if err != nil {
		return err
	}
	def, err := compiler.Build(spec, h.bindings)
	if err != nil {
		return err
	}
	var opts []store.RegisterOption
	if step.PreserveState {
		opts = append(opts, store.PreserveState())
	}
	return s.RegisterModule(splitPath(step.Register), def, opts...)
}

// trace merges the journaled flow into one event per commit and dispatch.
func (h *Harness) trace(ctx context.Context) ([]TraceEvent, error) {
	events, err := h.journal.ReplayFlow(ctx, h.flow)
	if err != nil {
		return nil, err
	}

	trace := []TraceEvent{}
	dispatches := make(map[int64]int)
	for _, ev := range events {
		switch ev.Type {
		case journal.EventMutation:
			trace = append(trace, TraceEvent{
				Kind:    KindMutation,
				Type:    ev.Mutation.Type,
				Payload: ir.ToGo(ev.Mutation.Payload),
				Seq:     ev.Seq,
			})
		case journal.EventAction:
			rec := ev.Action
			switch rec.Phase {
			case ir.ActionPhaseBefore:
				dispatches[rec.Seq] = len(trace)
				trace = append(trace, TraceEvent{
					Kind:    KindAction,
					Type:    rec.Type,
					Payload: ir.ToGo(rec.Payload),
					Seq:     rec.Seq,
					Outcome: OutcomePending,
				})
			case ir.ActionPhaseAfter:
				if i, ok := dispatches[rec.Seq]; ok {
					trace[i].Outcome = OutcomeOK
				}
			case ir.ActionPhaseError:
				if i, ok := dispatches[rec.Seq]; ok {
					trace[i].Outcome = OutcomeError
					trace[i].Error = rec.Error
				}
			}
		}
	}
	return trace, nil
}

func checkResult(index int, step Step, value any, result *Result) {
	want, err := ir.FromGo(normalize(step.ExpectResult))
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: expect_result: %v", index, err))
		return
	}
	got, err := ir.FromGo(value)
	if err != nil || !ir.Equal(want, got) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected result %v, got %v",
			index, describe(step), ir.ToGo(want), value))
	}
}

// joinReported combines an operation's error with the errors the store
// reported while it ran.
func joinReported(opErr error, reported []journal.ErrorRecord) error {
	errs := make([]error, 0, len(reported)+1)
	if opErr != nil {
		errs = append(errs, opErr)
	}
	for _, rec := range reported {
		if opErr != nil && strings.Contains(opErr.Error(), rec.Message) {
			continue
		}
		errs = append(errs, errors.New(rec.Message))
	}
	return errors.Join(errs...)
}

// convertValue turns a YAML value into the plain Go form the store
// records. Floats are rejected.
func convertValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	val, err := ir.FromGo(normalize(v))
	if err != nil {
		return nil, err
	}
	return ir.ToGo(val), nil
}

// normalize rewrites the map[any]any values some YAML decoders produce for
// non-string keys.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalize(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}

func describe(step Step) string {
	switch step.Kind() {
	case StepCommit:
		return "commit " + step.Commit
	case StepDispatch:
		return "dispatch " + step.Dispatch
	case StepRegister:
		return "register " + step.Register
	case StepUnregister:
		return "unregister " + step.Unregister
	case StepTravelTo:
		return fmt.Sprintf("travel_to %d", *step.TravelTo)
	}
	return "invalid"
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
