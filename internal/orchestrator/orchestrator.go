// Package orchestrator is the request boundary: it analyzes a request,
// plans the workflow, generates whatever components are missing, runs the
// plan, and records the outcome in history.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentfabric/internal/adaptation"
	"agentfabric/internal/capability"
	"agentfabric/internal/config"
	"agentfabric/internal/executor"
	"agentfabric/internal/history"
	"agentfabric/internal/loader"
	"agentfabric/internal/logging"
	"agentfabric/internal/oracle"
	"agentfabric/internal/planner"
	"agentfabric/internal/registry"
)

// Options tune one request.
type Options struct {
	// AutoCreate lets the orchestrator invoke the oracle for components the
	// plan needs but the registry lacks.
	AutoCreate bool
	// WorkflowType forces a strategy: sequential, parallel or conditional.
	// Empty means sequential.
	WorkflowType string
}

// Metadata summarizes how a workflow ran.
type Metadata struct {
	Steps             int    `json:"steps"`
	Complexity        string `json:"complexity"`
	Adaptations       int    `json:"adaptations"`
	ComponentsCreated int    `json:"components_created"`
	PerformanceGrade  string `json:"performance_grade"`
}

// WorkflowResult is the terminal answer for one request.
type WorkflowResult struct {
	Status        string                 `json:"status"`
	WorkflowID    string                 `json:"workflow_id"`
	Response      string                 `json:"response"`
	Results       map[string]interface{} `json:"results"`
	ExecutionTime float64                `json:"execution_time"`
	Metadata      Metadata               `json:"metadata"`
	Errors        []string               `json:"errors,omitempty"`
}

// requestPlanner is the planning surface ProcessRequest consumes.
type requestPlanner interface {
	BuildPlan(request string, opts planner.Options) (*planner.Plan, error)
}

// Orchestrator wires the planner, oracle, loader, executor and history into
// the process_request boundary. One orchestrator serves many workflows.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	planner  requestPlanner
	oracle   oracle.Oracle
	loader   *loader.Loader
	history  *history.Store

	mu     sync.Mutex
	active map[string]*executor.Executor
}

// New creates an orchestrator over shared infrastructure. The oracle may be
// the built-in template oracle or any external generator satisfying the
// same interface.
func New(cfg *config.Config, reg *registry.Registry, o oracle.Oracle, ld *loader.Loader, hist *history.Store) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		planner:  planner.New(reg),
		oracle:   o,
		loader:   ld,
		history:  hist,
		active:   make(map[string]*executor.Executor),
	}
}

// ProcessRequest runs one request end to end and always returns a terminal
// result. Malformed input is rejected before planning and leaves no history
// entry; every planned workflow is appended to history whatever its fate.
func (o *Orchestrator) ProcessRequest(ctx context.Context, request string, files []executor.FileRef, opts Options) *WorkflowResult {
	started := time.Now().UTC()
	workflowID := uuid.NewString()
	log := logging.Workflow().With("workflow_id", workflowID)

	request = strings.TrimSpace(request)
	if request == "" {
		return &WorkflowResult{
			Status:     executor.StatusError,
			WorkflowID: workflowID,
			Response:   "The request is empty; nothing to do.",
			Results:    map[string]interface{}{},
			Errors:     []string{"validation: empty request"},
		}
	}

	plan, err := o.planner.BuildPlan(request, planner.Options{
		WorkflowType: opts.WorkflowType,
		FileCount:    len(files),
	})
	if err != nil {
		log.Warnw("planning failed", "error", err)
		result := &WorkflowResult{
			Status:     executor.StatusError,
			WorkflowID: workflowID,
			Response:   fmt.Sprintf("Could not plan the workflow: %v.", err),
			Results:    map[string]interface{}{},
			Errors:     []string{err.Error()},
		}
		result.ExecutionTime = time.Since(started).Seconds()
		o.appendHistory(workflowID, request, started, plan, files, nil, result)
		return result
	}

	created := 0
	var generationErrors []string
	if !plan.Missing.Empty() {
		if !opts.AutoCreate {
			result := &WorkflowResult{
				Status:     executor.StatusError,
				WorkflowID: workflowID,
				Response:   missingResponse(plan.Missing),
				Results:    map[string]interface{}{},
				Errors:     []string{missingError(plan.Missing)},
				Metadata:   Metadata{Complexity: string(plan.Complexity)},
			}
			result.ExecutionTime = time.Since(started).Seconds()
			o.appendHistory(workflowID, request, started, plan, files, nil, result)
			return result
		}
		created, generationErrors = o.createComponents(ctx, plan)
		log.Infow("components generated", "created", created, "failed", len(generationErrors))
	}

	ctrl := adaptation.New(o.registry, o.oracle, o.loader, o.cfg.Execution.MaxAdaptations)
	exec := executor.New(o.loader, o.registry, o.cfg.Execution, ctrl)

	o.mu.Lock()
	o.active[workflowID] = exec
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, workflowID)
		o.mu.Unlock()
	}()

	outcome := exec.Run(ctx, workflowID, plan, files)

	result := &WorkflowResult{
		Status:     outcome.Status,
		WorkflowID: workflowID,
		Results:    resultsFrom(outcome.State),
		Errors:     append(generationErrors, outcome.Errors...),
		Metadata: Metadata{
			Steps:             len(outcome.Steps),
			Complexity:        string(plan.Complexity),
			Adaptations:       len(outcome.Adaptations),
			ComponentsCreated: created,
			PerformanceGrade:  outcome.Grade,
		},
	}
	result.Response = synthesizeResponse(plan, outcome)
	result.ExecutionTime = time.Since(started).Seconds()

	o.appendHistory(workflowID, request, started, plan, files, outcome, result)
	log.Infow("workflow finished",
		"status", result.Status,
		"steps", result.Metadata.Steps,
		"grade", result.Metadata.PerformanceGrade,
		"execution_time", result.ExecutionTime)
	return result
}

// Cancel requests cooperative cancellation of an in-flight workflow.
func (o *Orchestrator) Cancel(workflowID string) bool {
	o.mu.Lock()
	exec, ok := o.active[workflowID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	return exec.Cancel(workflowID)
}

// ActiveWorkflows snapshots the in-flight workflow IDs.
func (o *Orchestrator) ActiveWorkflows() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// createComponents generates and registers everything in creation order,
// tools before the agents that use them. Individual failures are recorded
// and the workflow continues; the affected steps will fail at load time and
// go through adaptation.
func (o *Orchestrator) createComponents(ctx context.Context, plan *planner.Plan) (int, []string) {
	missingAgents := make(map[string]planner.MissingAgent, len(plan.Missing.Agents))
	for _, a := range plan.Missing.Agents {
		missingAgents[a.Name] = a
	}
	capabilityOf := make(map[string]capability.Capability)
	for _, c := range plan.Capabilities {
		capabilityOf[c.Agent] = c
	}

	created := 0
	var failures []string
	for _, node := range plan.CreationOrder {
		var err error
		switch node.Kind {
		case planner.KindTool:
			err = o.createTool(ctx, plan, node.Name)
		case planner.KindAgent:
			err = o.createAgent(ctx, plan, missingAgents[node.Name], capabilityOf[node.Name])
		}
		if err != nil {
			logging.Oracle().Errorw("component generation failed",
				"kind", node.Kind, "name", node.Name, "error", err)
			failures = append(failures, fmt.Sprintf("generate %s %s: %v", node.Kind, node.Name, err))
			continue
		}
		created++
	}
	return created, failures
}

func (o *Orchestrator) createTool(ctx context.Context, plan *planner.Plan, name string) error {
	source, err := o.oracle.Generate(ctx, oracle.KindTool, name, oracle.Spec{
		Description: fmt.Sprintf("Tool %s for: %s", name, plan.Request),
		Context:     plan.Request,
	})
	if err != nil {
		return err
	}
	_, err = o.registry.RegisterTool(registry.ToolSpec{
		Name:         name,
		Description:  fmt.Sprintf("Generated tool %s", name),
		Source:       source,
		Signature:    "func(input interface{}) interface{}",
		PureFunction: true,
		Replace:      true,
	})
	return err
}

func (o *Orchestrator) createAgent(ctx context.Context, plan *planner.Plan, missing planner.MissingAgent, c capability.Capability) error {
	source, err := o.oracle.Generate(ctx, oracle.KindAgent, missing.Name, oracle.Spec{
		Description: plan.Request,
		UsesTools:   missing.Tools,
		Capability:  missing.Capability,
		Context:     plan.Request,
	})
	if err != nil {
		return err
	}
	var tags []string
	if c.Name != "" {
		tags = append(tags, c.Name)
	}
	_, err = o.registry.RegisterAgent(registry.AgentSpec{
		Name:        missing.Name,
		Description: fmt.Sprintf("Generated agent for %s", missing.Capability),
		Source:      source,
		UsesTools:   missing.Tools,
		Tags:        tags,
		Replace:     true,
	})
	return err
}

// appendHistory records the workflow. plan may be nil when planning itself
// failed; outcome may be nil when the workflow never ran.
func (o *Orchestrator) appendHistory(workflowID, request string, started time.Time, plan *planner.Plan, files []executor.FileRef, outcome *executor.Outcome, result *WorkflowResult) {
	rec := history.Record{
		WorkflowID:    workflowID,
		Request:       request,
		Status:        result.Status,
		StartedAt:     started,
		CompletedAt:   time.Now().UTC(),
		ExecutionTime: result.ExecutionTime,
		Type:          workflowType(plan),
		FilesCount:    len(files),
		Errors:        append([]string(nil), result.Errors...),
	}
	if plan != nil {
		rec.TotalSteps = len(plan.ExecutionOrder)
	}
	if outcome != nil {
		rec.StepsCompleted = outcome.StepsCompleted
		for _, s := range outcome.Steps {
			rec.Steps = append(rec.Steps, history.Step{
				Agent:    s.Agent,
				Status:   s.Status,
				Error:    s.Error,
				Duration: s.Duration.Seconds(),
				Attempts: s.Attempts,
			})
		}
		for _, a := range outcome.Adaptations {
			rec.Adaptations = append(rec.Adaptations, history.Adaptation{
				Step:    a.Step,
				Reason:  a.Reason,
				Action:  a.Action,
				Outcome: a.Outcome,
			})
		}
	}
	if err := o.history.Append(rec); err != nil {
		logging.History().Errorw("history append failed", "workflow_id", workflowID, "error", err)
	}
}

func workflowType(plan *planner.Plan) string {
	if plan == nil || plan.Complexity == capability.Simple {
		return "simple"
	}
	return "pipeline"
}

// resultsFrom lifts the results section out of the state envelope.
func resultsFrom(state map[string]interface{}) map[string]interface{} {
	if state == nil {
		return map[string]interface{}{}
	}
	if results, ok := state["results"].(map[string]interface{}); ok {
		return results
	}
	return map[string]interface{}{}
}

func missingError(m planner.MissingComponents) string {
	return fmt.Sprintf("missing components: %d agent(s), %d tool(s); auto-create disabled",
		len(m.Agents), len(m.Tools))
}

func missingResponse(m planner.MissingComponents) string {
	var names []string
	for _, a := range m.Agents {
		names = append(names, a.Name)
	}
	for _, t := range m.Tools {
		names = append(names, t.Name)
	}
	return fmt.Sprintf("The request needs components that are not registered (%s) and auto-create is disabled.",
		strings.Join(names, ", "))
}
