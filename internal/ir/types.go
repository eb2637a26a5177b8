package ir

// MutationRecord is the diagnostic record of one committed mutation.
type MutationRecord struct {
	ID        string   `json:"id"`
	Seq       int64    `json:"seq"`
	FlowToken string   `json:"flow_token"`
	Type      string   `json:"type"`
	Payload   IRValue  `json:"payload"`
	State     IRObject `json:"state,omitempty"`
	StateHash string   `json:"state_hash"`
}

// ActionPhase identifies which subscriber hook produced an ActionRecord.
type ActionPhase string

const (
	ActionPhaseBefore ActionPhase = "before"
	ActionPhaseAfter  ActionPhase = "after"
	ActionPhaseError  ActionPhase = "error"
)

// ActionRecord is the diagnostic record of one dispatch phase.
type ActionRecord struct {
	Seq       int64       `json:"seq"`
	FlowToken string      `json:"flow_token"`
	Type      string      `json:"type"`
	Payload   IRValue     `json:"payload"`
	Phase     ActionPhase `json:"phase"`
	Error     string      `json:"error,omitempty"`
}

// PayloadValue converts an arbitrary Go payload into a recordable value.
// Payloads that have no IR form are recorded as their Go type name so a
// journal row is never dropped.
func PayloadValue(payload any) IRValue {
	v, err := FromGo(payload)
	if err != nil {
		return IRObject{"go_type": IRString(goTypeName(payload))}
	}
	return v
}
