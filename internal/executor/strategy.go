package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runParallel fans the agents out over envelope snapshots taken at the
// fan-out point, then merges deterministically in execution order. Children
// never observe each other's writes; the merged data payload becomes a
// mapping keyed by agent name.
func (e *Executor) runParallel(ctx context.Context, agents []string, state map[string]interface{}, outcome *Outcome) {
	baseErrors := 0
	if errs, ok := state["errors"].([]interface{}); ok {
		baseErrors = len(errs)
	}

	type childRun struct {
		state   map[string]interface{}
		report  StepReport
		outcome *Outcome
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallelAgents)

	var mu sync.Mutex
	children := make(map[string]*childRun, len(agents))

	for _, agent := range agents {
		agent := agent
		child := cloneState(state)
		g.Go(func() error {
			// Each child gets a private outcome so adaptation and error
			// records never race; they are folded in at merge time. An
			// abort cannot stop siblings already in flight; the controller
			// keeps refusing further adaptations and the merge settles the
			// terminal status.
			childOutcome := &Outcome{}
			report, _ := e.runStepWithAdaptation(gctx, agent, child, childOutcome)
			mu.Lock()
			children[agent] = &childRun{state: child, report: report, outcome: childOutcome}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Deterministic merge in execution order. Children that never ran are
	// skipped (context already dead at fan-out).
	merged := map[string]interface{}{}
	for _, agent := range agents {
		child, ok := children[agent]
		if !ok {
			continue
		}
		outcome.Steps = append(outcome.Steps, child.report)
		outcome.Adaptations = append(outcome.Adaptations, child.outcome.Adaptations...)
		outcome.Errors = append(outcome.Errors, child.outcome.Errors...)
		if child.report.Status == StatusSuccess {
			outcome.StepsCompleted++
		}

		env, ok := EnvelopeFrom(child.state, child.report.Agent)
		if !ok {
			continue
		}
		writeEnvelope(state, child.report.Agent, env)
		if env.Status == StatusSuccess {
			merged[agent] = env.Data
		}

		// Error records the child appended carry over to the parent.
		if errs, ok := child.state["errors"].([]interface{}); ok && len(errs) > baseErrors {
			parent, _ := state["errors"].([]interface{})
			state["errors"] = append(parent, errs[baseErrors:]...)
		}
	}
	if len(merged) > 0 {
		state["current_data"] = merged
	}
}
