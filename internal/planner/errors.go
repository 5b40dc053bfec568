package planner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected is returned when the dependency graph cannot be ordered.
// The graph is acyclic by construction for catalog-produced plans, so this
// surfaces only for hand-built graphs or corrupted input.
var ErrCycleDetected = errors.New("cycle detected")

// CycleError carries the set of nodes left unordered by the topological sort.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: involving [%s]", ErrCycleDetected, strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }
