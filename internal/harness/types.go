package harness

// Trace event kinds.
const (
	KindMutation = "mutation"
	KindAction   = "action"
)

// Action outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePending = "pending"
)

// TraceEvent is one commit or dispatch of a scenario run. A dispatch is a
// single event; its outcome is taken from the after or error phase.
type TraceEvent struct {
	Kind    string `json:"kind"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Seq     int64  `json:"seq"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists commits and dispatches in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// State is the final root state.
	State map[string]any `json:"state,omitempty"`

	// Results holds each dispatch step's resolved value, keyed by step
	// index.
	Results map[int]any `json:"results,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Results: make(map[int]any),
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
