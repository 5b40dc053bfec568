// Package adaptation decides what to do when a workflow step fails:
// regenerate missing components, substitute a compatible agent, or record
// the failure and move on. Decisions are bounded by a per-workflow budget.
package adaptation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"agentfabric/internal/executor"
	"agentfabric/internal/loader"
	"agentfabric/internal/logging"
	"agentfabric/internal/oracle"
	"agentfabric/internal/registry"
)

// ErrBudgetExceeded is surfaced at the workflow boundary when adaptations
// run out.
var ErrBudgetExceeded = errors.New("adaptation budget exceeded")

// Catalog is the registry surface the controller needs.
type Catalog interface {
	GetAgent(name string) (*registry.AgentRecord, bool)
	GetTool(name string) (*registry.ToolRecord, bool)
	ListAgents(opts registry.ListAgentsOptions) []*registry.AgentRecord
	RegisterTool(spec registry.ToolSpec) (*registry.ToolRecord, error)
	RegisterAgent(spec registry.AgentSpec) (*registry.AgentRecord, error)
}

// Invalidator drops cached callables after regeneration.
type Invalidator interface {
	Invalidate(name string)
}

// Controller implements the executor's Adapter contract for one workflow.
// It is not shared across workflows: the budget is per run. The parallel
// strategy consults it from concurrent goroutines, so the budget counter is
// mutex-guarded.
type Controller struct {
	catalog Catalog
	oracle  oracle.Oracle
	cache   Invalidator
	budget  int

	mu   sync.Mutex
	used int
}

// New creates a controller with the given adaptation budget.
func New(catalog Catalog, o oracle.Oracle, cache Invalidator, budget int) *Controller {
	return &Controller{
		catalog: catalog,
		oracle:  o,
		cache:   cache,
		budget:  budget,
	}
}

// Used reports how many adaptations this workflow has consumed.
func (c *Controller) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// consume takes one unit of budget. It reports false once the budget is
// spent.
func (c *Controller) consume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used >= c.budget {
		return false
	}
	c.used++
	return true
}

// OnStepFailure applies the adaptation policy:
//  1. load failures regenerate the missing artifacts and retry;
//  2. a failed agent with a compatible, same-tagged alternative substitutes;
//  3. anything else is recorded and the workflow continues.
//
// Once the budget is spent the controller aborts carrying
// ErrBudgetExceeded, which terminates the workflow.
func (c *Controller) OnStepFailure(ctx context.Context, agent string, cause error) executor.Decision {
	if !c.consume() {
		logging.Adaptation().Warnw("budget exhausted",
			"agent", agent, "budget", c.budget, "cause", cause)
		return executor.Decision{Action: executor.ActionAbort, Err: ErrBudgetExceeded}
	}

	if errors.Is(cause, loader.ErrLoadFailure) {
		err := c.regenerate(ctx, agent)
		if err != nil {
			logging.Adaptation().Warnw("regeneration failed", "agent", agent, "error", err)
			return executor.Decision{
				Action: executor.ActionRecord,
				Entry: executor.AdaptationEntry{
					Step:    agent,
					Reason:  cause.Error(),
					Action:  "regenerate",
					Outcome: fmt.Sprintf("regeneration failed: %v", err),
				},
			}
		}
		return executor.Decision{
			Action: executor.ActionRetry,
			Entry: executor.AdaptationEntry{
				Step:    agent,
				Reason:  cause.Error(),
				Action:  "regenerate",
				Outcome: "components regenerated, retrying",
			},
		}
	}

	if substitute := c.findSubstitute(agent); substitute != "" {
		return executor.Decision{
			Action:          executor.ActionSubstitute,
			SubstituteAgent: substitute,
			Entry: executor.AdaptationEntry{
				Step:    agent,
				Reason:  cause.Error(),
				Action:  "substitute",
				Outcome: "substituted with " + substitute,
			},
		}
	}

	return executor.Decision{
		Action: executor.ActionRecord,
		Entry: executor.AdaptationEntry{
			Step:    agent,
			Reason:  cause.Error(),
			Action:  "record",
			Outcome: "no adaptation available, continuing",
		},
	}
}

// regenerate rebuilds whatever artifacts the failing agent is missing: its
// tools first, then the agent itself. Replaced components are re-registered
// and evicted from the loader cache.
func (c *Controller) regenerate(ctx context.Context, agent string) error {
	rec, ok := c.catalog.GetAgent(agent)
	if !ok {
		return fmt.Errorf("agent %s not registered", agent)
	}

	for _, tool := range rec.UsesTools {
		toolRec, ok := c.catalog.GetTool(tool)
		if ok && artifactExists(toolRec.Location) {
			continue
		}
		var toolSpec oracle.Spec
		if ok {
			toolSpec.Description = toolRec.Description
		}
		source, err := c.oracle.Generate(ctx, oracle.KindTool, tool, toolSpec)
		if err != nil {
			return fmt.Errorf("regenerate tool %s: %w", tool, err)
		}
		if _, err := c.catalog.RegisterTool(registry.ToolSpec{
			Name:         tool,
			Description:  toolSpec.Description,
			Source:       source,
			PureFunction: true,
			Replace:      true,
		}); err != nil {
			return fmt.Errorf("re-register tool %s: %w", tool, err)
		}
		c.cache.Invalidate(tool)
		logging.Adaptation().Infow("tool regenerated", "tool", tool, "agent", agent)
	}

	if !artifactExists(rec.Location) {
		source, err := c.oracle.Generate(ctx, oracle.KindAgent, agent, oracle.Spec{
			Description: rec.Description,
			InputSchema: rec.InputSchema,
			UsesTools:   rec.UsesTools,
		})
		if err != nil {
			return fmt.Errorf("regenerate agent %s: %w", agent, err)
		}
		if _, err := c.catalog.RegisterAgent(registry.AgentSpec{
			Name:         agent,
			Description:  rec.Description,
			Source:       source,
			UsesTools:    rec.UsesTools,
			InputSchema:  rec.InputSchema,
			OutputSchema: rec.OutputSchema,
			Tags:         rec.Tags,
			Replace:      true,
		}); err != nil {
			return fmt.Errorf("re-register agent %s: %w", agent, err)
		}
		logging.Adaptation().Infow("agent regenerated", "agent", agent)
	}
	c.cache.Invalidate(agent)
	return nil
}

// findSubstitute looks for an active agent sharing a capability tag with
// the failed one and accepting a compatible input schema.
func (c *Controller) findSubstitute(agent string) string {
	failed, ok := c.catalog.GetAgent(agent)
	if !ok || len(failed.Tags) == 0 {
		return ""
	}

	candidates := c.catalog.ListAgents(registry.ListAgentsOptions{
		Tags:       failed.Tags,
		ActiveOnly: true,
	})
	for _, cand := range candidates {
		if cand.Name == agent {
			continue
		}
		if SchemasCompatible(failed.InputSchema, cand.InputSchema) {
			return cand.Name
		}
	}
	return ""
}

// SchemasCompatible reports whether a candidate agent can accept the input
// the failed agent was going to receive: every key of the required schema
// must appear in the candidate schema with the same type tag. The "any" tag
// matches every type.
func SchemasCompatible(required, candidate map[string]string) bool {
	for key, tag := range required {
		candTag, ok := candidate[key]
		if !ok {
			return false
		}
		if tag == "any" || candTag == "any" {
			continue
		}
		if tag != candTag {
			return false
		}
	}
	return true
}

func artifactExists(location string) bool {
	if location == "" {
		return false
	}
	_, err := os.Stat(location)
	return err == nil
}
