package executor

import "context"

// Action is what the adaptation controller tells the executor to do with a
// failed step.
type Action int

const (
	// ActionRecord keeps the failure and continues with the remaining
	// steps.
	ActionRecord Action = iota
	// ActionRetry re-runs the same step.
	ActionRetry
	// ActionSubstitute re-runs the step with a different agent.
	ActionSubstitute
	// ActionAbort stops consulting the controller; the step stays failed.
	ActionAbort
)

// AdaptationEntry is the audit record of one adaptation decision.
type AdaptationEntry struct {
	Step    string `json:"step"`
	Reason  string `json:"reason"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

// Decision is the controller's response to a step failure.
type Decision struct {
	Action          Action
	SubstituteAgent string
	Entry           AdaptationEntry
	// Err names the terminal condition behind an abort. The executor wraps
	// it into the failing step's cause so it survives to the boundary.
	Err error
}

// Adapter is consulted after every failed step attempt. Implementations
// enforce their own retry budget by returning ActionAbort once exhausted.
type Adapter interface {
	OnStepFailure(ctx context.Context, agent string, cause error) Decision
}
