package executor

import "errors"

var (
	// ErrStepTimeout is returned when a single agent exceeds the per-step
	// deadline. The adaptation controller treats it as a step error.
	ErrStepTimeout = errors.New("step timeout")

	// ErrWorkflowTimeout is returned when a workflow exceeds its overall
	// deadline.
	ErrWorkflowTimeout = errors.New("workflow timeout")

	// ErrWorkflowCancelled is returned between steps after a cooperative
	// cancel.
	ErrWorkflowCancelled = errors.New("workflow cancelled")

	// ErrAgentPanic wraps a panic recovered from an agent callable.
	ErrAgentPanic = errors.New("agent panic")
)
