// Package oracle defines the code-generation collaborator contract. The
// core treats the oracle as a pure function from a component spec to source
// text; it never inspects how the text was produced.
package oracle

import (
	"context"
	"errors"
)

// Kind selects the component flavor being generated.
type Kind string

const (
	KindTool  Kind = "tool"
	KindAgent Kind = "agent"
)

// ErrOracleFailure is returned when the oracle cannot produce source for a
// request.
var ErrOracleFailure = errors.New("oracle failure")

// Spec carries everything the oracle needs to generate one component.
type Spec struct {
	// Description is free text; for escalated requests it is the raw
	// user request.
	Description string
	// InputSchema and OutputSchema are key→type-tag hints.
	InputSchema  map[string]string
	OutputSchema map[string]string
	// UsesTools lists the tool names an agent may call (agents only).
	UsesTools []string
	// Capability is the analyzer tag that asked for this component.
	Capability string
	// Context is optional retrieval context chosen by the caller.
	Context string
}

// Oracle produces source text for a named component. The returned source
// must declare exactly one top-level callable: `{name}` with signature
// func(input interface{}) interface{} for tools, or `{name}_agent` with
// signature func(state map[string]interface{}) map[string]interface{} for
// agents. Tool callables never panic; they return a default value on any
// internal error.
type Oracle interface {
	Generate(ctx context.Context, kind Kind, name string, spec Spec) (string, error)
}
