package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentfabric/internal/config"
	"agentfabric/internal/loader"
	"agentfabric/internal/logging"
	"agentfabric/internal/planner"
)

// Resolver maps component names to callables.
type Resolver interface {
	Agent(name string) (loader.AgentFunc, error)
}

// UsageRecorder receives per-agent execution stats.
type UsageRecorder interface {
	MarkAgentUsed(name string, duration time.Duration) error
}

// BranchSelector picks the single agent a conditional plan runs. It sees
// the current envelope and the candidate agents in execution order.
type BranchSelector func(state map[string]interface{}, agents []string) string

// StepReport summarizes one step attempt chain.
type StepReport struct {
	Agent    string        `json:"agent"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
}

// Outcome is the terminal result of one workflow run.
type Outcome struct {
	Status         string                 `json:"status"`
	State          map[string]interface{} `json:"-"`
	Steps          []StepReport           `json:"steps"`
	StepsCompleted int                    `json:"steps_completed"`
	Grade          string                 `json:"performance_grade"`
	Adaptations    []AdaptationEntry      `json:"adaptations"`
	Errors         []string               `json:"errors"`
	ExecutionTime  time.Duration          `json:"execution_time"`
}

// Executor runs plans. One executor serves many workflows; per-workflow
// state lives in the envelope and the active-workflow map.
type Executor struct {
	resolver Resolver
	usage    UsageRecorder
	cfg      config.ExecutionConfig
	adapter  Adapter
	branch   BranchSelector

	mu     sync.Mutex
	active map[string]*workflowHandle
}

type workflowHandle struct {
	cancel    context.CancelFunc
	cancelled bool
}

// New creates an executor. adapter may be nil, in which case failed steps
// are recorded without adaptation.
func New(resolver Resolver, usage UsageRecorder, cfg config.ExecutionConfig, adapter Adapter) *Executor {
	return &Executor{
		resolver: resolver,
		usage:    usage,
		cfg:      cfg,
		adapter:  adapter,
		branch:   firstBranch,
		active:   make(map[string]*workflowHandle),
	}
}

// SetBranchSelector overrides the conditional-strategy predicate.
func (e *Executor) SetBranchSelector(sel BranchSelector) {
	if sel != nil {
		e.branch = sel
	}
}

func firstBranch(state map[string]interface{}, agents []string) string {
	if len(agents) == 0 {
		return ""
	}
	return agents[0]
}

// Cancel requests cooperative cancellation of a running workflow. It
// returns false when the workflow is not active.
func (e *Executor) Cancel(workflowID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.active[workflowID]
	if !ok {
		return false
	}
	h.cancelled = true
	h.cancel()
	return true
}

// ActiveWorkflows lists in-flight workflow IDs. Readers tolerate stale
// snapshots.
func (e *Executor) ActiveWorkflows() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

// Run executes a plan to completion and always returns a terminal outcome.
func (e *Executor) Run(ctx context.Context, workflowID string, plan *planner.Plan, files []FileRef) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.WorkflowTimeout)
	defer cancel()

	handle := &workflowHandle{cancel: cancel}
	e.mu.Lock()
	e.active[workflowID] = handle
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, workflowID)
		e.mu.Unlock()
	}()

	started := time.Now()
	state := NewState(plan.Request, files)
	outcome := &Outcome{
		State:       state,
		Adaptations: []AdaptationEntry{},
		Errors:      []string{},
	}

	agents := plan.ExecutionOrder
	switch plan.Strategy {
	case planner.StrategyParallel:
		e.runParallel(ctx, agents, state, outcome)
	case planner.StrategyConditional:
		if chosen := e.branch(state, agents); chosen != "" {
			agents = []string{chosen}
		}
		e.runSequential(ctx, handle, agents, state, outcome)
	default:
		e.runSequential(ctx, handle, agents, state, outcome)
	}

	outcome.ExecutionTime = time.Since(started)
	e.finalize(handle, len(agents), outcome)

	logging.Executor().Infow("workflow finished",
		"workflow_id", workflowID,
		"status", outcome.Status,
		"steps", len(outcome.Steps),
		"grade", outcome.Grade,
		"duration", outcome.ExecutionTime)
	return outcome
}

// runSequential walks the agents in order, consulting the adaptation
// controller on failure. Cancellation and workflow timeout are checked
// between steps; an aborted adaptation terminates the walk.
func (e *Executor) runSequential(ctx context.Context, handle *workflowHandle, agents []string, state map[string]interface{}, outcome *Outcome) {
	for _, agent := range agents {
		if err := ctx.Err(); err != nil {
			e.recordInterruption(handle, agent, outcome)
			return
		}
		report, aborted := e.runStepWithAdaptation(ctx, agent, state, outcome)
		outcome.Steps = append(outcome.Steps, report)
		if report.Status == StatusSuccess {
			outcome.StepsCompleted++
		}
		if report.Status == StatusCancelled {
			return
		}
		if aborted {
			logging.Executor().Warnw("workflow terminated by adaptation controller",
				"agent", report.Agent, "remaining", len(agents))
			return
		}
	}
}

// runStepWithAdaptation attempts one step, retrying or substituting per the
// adaptation controller's decisions. The returned report covers the whole
// attempt chain; aborted reports the controller terminating the workflow.
func (e *Executor) runStepWithAdaptation(ctx context.Context, agent string, state map[string]interface{}, outcome *Outcome) (report StepReport, aborted bool) {
	report = StepReport{Agent: agent, Attempts: 0}

	for {
		report.Attempts++
		env, dur, err := e.runStep(ctx, agent, state)
		report.Duration += dur

		if err == nil && env.Status != StatusError && env.Status != StatusPartial {
			report.Status = env.Status
			return report, false
		}

		cause := err
		if cause == nil {
			if env.Status == StatusPartial {
				cause = fmt.Errorf("agent %s returned partial result", agent)
			} else {
				cause = fmt.Errorf("agent %s returned error envelope: %v", agent, env.Metadata["error"])
			}
		}
		if ctx.Err() != nil {
			// Timeout and cancel are not adaptable.
			report.Status = StatusError
			report.Error = cause.Error()
			e.failStep(state, agent, cause, dur, outcome)
			return report, false
		}

		if e.adapter == nil {
			report.Status = StatusError
			report.Error = cause.Error()
			e.failStep(state, agent, cause, dur, outcome)
			return report, false
		}

		decision := e.adapter.OnStepFailure(ctx, agent, cause)
		if decision.Entry.Step != "" {
			outcome.Adaptations = append(outcome.Adaptations, decision.Entry)
		}

		switch decision.Action {
		case ActionRetry:
			logging.Executor().Infow("retrying step", "agent", agent, "attempt", report.Attempts)
			continue
		case ActionSubstitute:
			logging.Executor().Infow("substituting step",
				"agent", agent, "substitute", decision.SubstituteAgent)
			agent = decision.SubstituteAgent
			report.Agent = agent
			continue
		case ActionAbort:
			// Budget exhausted: the failure is terminal for the workflow.
			if decision.Err != nil {
				cause = fmt.Errorf("%w: %v", decision.Err, cause)
			}
			report.Status = StatusError
			report.Error = cause.Error()
			e.failStep(state, agent, cause, dur, outcome)
			return report, true
		default:
			// Record: keep the failure and move on. A partial envelope
			// stays partial in the report.
			report.Status = StatusError
			if err == nil && env.Status == StatusPartial {
				report.Status = StatusPartial
			}
			report.Error = cause.Error()
			e.failStep(state, agent, cause, dur, outcome)
			return report, false
		}
	}
}

// runStep invokes one agent with panic recovery and the per-step deadline.
func (e *Executor) runStep(ctx context.Context, agent string, state map[string]interface{}) (Envelope, time.Duration, error) {
	fn, err := e.resolver.Agent(agent)
	if err != nil {
		return Envelope{}, 0, err
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	// The agent runs against a snapshot; a step that outlives its deadline
	// keeps mutating the snapshot, never the live envelope.
	snapshot := cloneState(state)
	started := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrAgentPanic, r)
			}
		}()
		if returned := fn(snapshot); returned != nil {
			for k, v := range returned {
				snapshot[k] = v
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		dur := time.Since(started)
		if err != nil {
			return Envelope{}, dur, err
		}
		for k, v := range snapshot {
			state[k] = v
		}
		env, ok := EnvelopeFrom(state, agent)
		if !ok {
			return Envelope{}, dur, fmt.Errorf("agent %s published no result envelope", agent)
		}
		if env.Metadata != nil {
			env.Metadata["execution_time"] = dur.Seconds()
		}
		if env.Status == StatusSuccess && e.usage != nil {
			if uerr := e.usage.MarkAgentUsed(agent, dur); uerr != nil {
				logging.Executor().Warnw("usage update failed", "agent", agent, "error", uerr)
			}
		}
		return env, dur, nil
	case <-stepCtx.Done():
		dur := time.Since(started)
		if ctx.Err() != nil {
			return Envelope{}, dur, fmt.Errorf("%w: %v", ErrWorkflowTimeout, ctx.Err())
		}
		return Envelope{}, dur, fmt.Errorf("%w: agent %s after %s", ErrStepTimeout, agent, e.cfg.StepTimeout)
	}
}

// failStep synthesizes the error envelope for a failed step and records the
// error on the envelope's list.
func (e *Executor) failStep(state map[string]interface{}, agent string, cause error, dur time.Duration, outcome *Outcome) {
	if _, ok := EnvelopeFrom(state, agent); !ok {
		writeEnvelope(state, agent, errorEnvelope(agent, cause, dur.Seconds()))
	}
	appendError(state, agent, cause)
	outcome.Errors = append(outcome.Errors, cause.Error())
	logging.Executor().Warnw("step failed", "agent", agent, "error", cause)
}

// recordInterruption closes out a run stopped between steps. agent is the
// step that would have run next.
func (e *Executor) recordInterruption(handle *workflowHandle, agent string, outcome *Outcome) {
	if handle.cancelled {
		outcome.Errors = append(outcome.Errors, ErrWorkflowCancelled.Error())
		outcome.Steps = append(outcome.Steps, StepReport{Agent: agent, Status: StatusCancelled})
		return
	}
	outcome.Errors = append(outcome.Errors, ErrWorkflowTimeout.Error())
}

// finalize assigns terminal status and performance grade.
func (e *Executor) finalize(handle *workflowHandle, totalSteps int, outcome *Outcome) {
	switch {
	case handle.cancelled:
		outcome.Status = StatusCancelled
	case outcome.StepsCompleted == totalSteps && totalSteps > 0:
		outcome.Status = StatusSuccess
	case outcome.StepsCompleted > 0:
		outcome.Status = StatusPartial
	default:
		outcome.Status = StatusError
	}
	outcome.Grade = e.grade(outcome)
}

// grade buckets a finished run: excellent and good require every step to
// have succeeded and the run to beat the corresponding threshold.
func (e *Executor) grade(outcome *Outcome) string {
	switch {
	case outcome.Status == StatusSuccess && outcome.ExecutionTime < e.cfg.ExcellentThreshold:
		return "excellent"
	case outcome.Status == StatusSuccess && outcome.ExecutionTime < e.cfg.GoodThreshold:
		return "good"
	case outcome.Status == StatusPartial:
		return "acceptable"
	default:
		return "poor"
	}
}
