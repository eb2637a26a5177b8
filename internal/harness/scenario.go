package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against one module.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Module is the path to the root module's .cue file or package
	// directory.
	Module string `yaml:"module"`

	// Strict enables strict mode on the store.
	Strict bool `yaml:"strict,omitempty"`

	// FlowToken stamps every commit and dispatch. Defaults to
	// testutil.DefaultFlowToken.
	FlowToken string `yaml:"flow_token,omitempty"`

	// Components are slash-separated component paths mounted under the
	// root component that owns the store. Parents are created as needed.
	Components []string `yaml:"components,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted operation.
type Step struct {
	Commit     string `yaml:"commit,omitempty"`
	Dispatch   string `yaml:"dispatch,omitempty"`
	Register   string `yaml:"register,omitempty"`
	Unregister string `yaml:"unregister,omitempty"`
	TravelTo   *int64 `yaml:"travel_to,omitempty"`

	// Via runs the step against the store injected into the named
	// component instead of the root component's.
	Via string `yaml:"via,omitempty"`

	// Module is the source of a register step.
	Module string `yaml:"module,omitempty"`

	// PreserveState keeps existing state at the register path.
	PreserveState bool `yaml:"preserve_state,omitempty"`

	Payload any `yaml:"payload,omitempty"`

	// ExpectError is an error code or message substring the step must
	// produce. Empty means the step must not fail.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectResult is compared with a dispatch's resolved value.
	ExpectResult any `yaml:"expect_result,omitempty"`
}

// Step kinds.
const (
	StepCommit     = "commit"
	StepDispatch   = "dispatch"
	StepRegister   = "register"
	StepUnregister = "unregister"
	StepTravelTo   = "travel_to"
)

// Kind returns which operation the step performs, or "" when it names
// none or more than one.
func (s Step) Kind() string {
	var kinds []string
	if s.Commit != "" {
		kinds = append(kinds, StepCommit)
	}
	if s.Dispatch != "" {
		kinds = append(kinds, StepDispatch)
	}
	if s.Register != "" {
		kinds = append(kinds, StepRegister)
	}
	if s.Unregister != "" {
		kinds = append(kinds, StepUnregister)
	}
	if s.TravelTo != nil {
		kinds = append(kinds, StepTravelTo)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Assertion checks the trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state or getter.
	Type string `yaml:"type"`

	// Kind restricts trace assertions to mutations or actions. Defaults
	// to mutation.
	Kind string `yaml:"kind,omitempty"`

	// Name is a mutation or action type, or a getter name.
	Name string `yaml:"name,omitempty"`

	// Payload is a subset match against the event payload
	// (trace_contains).
	Payload any `yaml:"payload,omitempty"`

	// Names are the expected types in order (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Count is the exact number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Path is a dotted state path (final_state).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value (final_state, getter).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertGetter        = "getter"
)

// LoadScenario reads a scenario file. Unknown fields are rejected so typos
// fail loudly. Module paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.resolvePaths(filepath.Dir(path))

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving or checking paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolvePaths(base string) {
	s.Module = resolve(base, s.Module)
	for i := range s.Steps {
		s.Steps[i].Module = resolve(base, s.Steps[i].Module)
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if _, err := os.Stat(s.Module); err != nil {
		return fmt.Errorf("module not found: %s", s.Module)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step) error {
	kind := st.Kind()
	switch kind {
	case "":
		return fmt.Errorf("steps[%d]: exactly one of commit, dispatch, register, unregister or travel_to is required", index)
	case StepRegister:
		if st.Module == "" {
			return fmt.Errorf("steps[%d]: module is required for register", index)
		}
		if _, err := os.Stat(st.Module); err != nil {
			return fmt.Errorf("steps[%d]: module not found: %s", index, st.Module)
		}
	case StepTravelTo:
		if *st.TravelTo < 0 {
			return fmt.Errorf("steps[%d]: travel_to must be non-negative", index)
		}
	}
	if st.ExpectResult != nil && kind != StepDispatch {
		return fmt.Errorf("steps[%d]: expect_result is only valid for dispatch", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Kind {
	case "", KindMutation, KindAction:
	default:
		return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
	case AssertGetter:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for getter", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (a *Assertion) kind() string {
	if a.Kind == "" {
		return KindMutation
	}
	return a.Kind
}
