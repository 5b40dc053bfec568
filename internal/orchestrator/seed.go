package orchestrator

import (
	"context"
	"fmt"

	"agentfabric/internal/capability"
	"agentfabric/internal/logging"
	"agentfabric/internal/oracle"
	"agentfabric/internal/registry"
)

// EnsureSeedComponents registers every catalog capability's tools and agent
// that the registry does not already hold, generated by the given oracle.
// Idempotent: a registry seeded before comes back unchanged.
func EnsureSeedComponents(ctx context.Context, reg *registry.Registry, o oracle.Oracle) (int, error) {
	created := 0
	for _, c := range capability.Known() {
		for _, tool := range c.Tools {
			if reg.HasTool(tool) {
				continue
			}
			source, err := o.Generate(ctx, oracle.KindTool, tool, oracle.Spec{
				Description: fmt.Sprintf("Built-in tool %s", tool),
				Capability:  c.Name,
			})
			if err != nil {
				return created, fmt.Errorf("seed tool %s: %w", tool, err)
			}
			_, err = reg.RegisterTool(registry.ToolSpec{
				Name:         tool,
				Description:  fmt.Sprintf("Built-in tool for %s", c.Name),
				Source:       source,
				Signature:    "func(input interface{}) interface{}",
				Tags:         []string{c.Name},
				PureFunction: true,
			})
			if err != nil {
				return created, fmt.Errorf("seed tool %s: %w", tool, err)
			}
			created++
		}
		if reg.HasAgent(c.Agent) {
			continue
		}
		source, err := o.Generate(ctx, oracle.KindAgent, c.Agent, oracle.Spec{
			Description: fmt.Sprintf("Built-in agent for %s", c.Name),
			UsesTools:   c.Tools,
			Capability:  c.Name,
		})
		if err != nil {
			return created, fmt.Errorf("seed agent %s: %w", c.Agent, err)
		}
		_, err = reg.RegisterAgent(registry.AgentSpec{
			Name:        c.Agent,
			Description: fmt.Sprintf("Built-in agent for %s", c.Name),
			Source:      source,
			UsesTools:   c.Tools,
			Tags:        []string{c.Name},
		})
		if err != nil {
			return created, fmt.Errorf("seed agent %s: %w", c.Agent, err)
		}
		created++
	}
	if created > 0 {
		logging.Workflow().Infow("seed components registered", "created", created)
	}
	return created, nil
}
