// Package analytics answers usage queries over the registry and the
// workflow history: who runs most, what is reused, what sits idle.
package analytics

import (
	"sort"

	"agentfabric/internal/history"
	"agentfabric/internal/registry"
)

// AgentUsage ranks one agent by execution count.
type AgentUsage struct {
	Name       string  `json:"name"`
	Executions int     `json:"executions"`
	AvgTime    float64 `json:"avg_time"`
}

// ToolUsage ranks one tool by its in-degree (agents using it).
type ToolUsage struct {
	Name      string   `json:"name"`
	InDegree  int      `json:"in_degree"`
	Consumers []string `json:"consumers"`
}

// Report is the aggregate analytics snapshot.
type Report struct {
	MostUsedAgents    []AgentUsage `json:"most_used_agents"`
	ToolsByUsage      []ToolUsage  `json:"tools_by_usage"`
	UnusedTools       []string     `json:"unused_tools"`
	MeanAgentSize     float64      `json:"mean_agent_size"`
	MeanToolSize      float64      `json:"mean_tool_size"`
	MeanToolsPerAgent float64      `json:"mean_tools_per_agent"`
	RecentSuccessRate float64      `json:"recent_success_rate"`
	RecentAverageTime float64      `json:"recent_average_time"`
	TotalWorkflows    int          `json:"total_workflows"`
}

// Service computes analytics over a registry and a history store.
type Service struct {
	registry *registry.Registry
	history  *history.Store
	window   int
}

// New creates the analytics service; window is the recent-workflow span for
// trend queries.
func New(reg *registry.Registry, hist *history.Store, window int) *Service {
	return &Service{registry: reg, history: hist, window: window}
}

// MostUsedAgents returns up to n agents ordered by execution count, ties by
// name.
func (s *Service) MostUsedAgents(n int) []AgentUsage {
	agents := s.registry.ListAgents(registry.ListAgentsOptions{})
	usage := make([]AgentUsage, 0, len(agents))
	for _, a := range agents {
		usage = append(usage, AgentUsage{
			Name:       a.Name,
			Executions: a.ExecutionCount,
			AvgTime:    a.AvgExecutionTime,
		})
	}
	sort.SliceStable(usage, func(i, j int) bool {
		return usage[i].Executions > usage[j].Executions
	})
	if n > 0 && n < len(usage) {
		usage = usage[:n]
	}
	return usage
}

// ToolsByUsage ranks tools by how many agents reference them, ties by name.
func (s *Service) ToolsByUsage() []ToolUsage {
	tools := s.registry.ListTools(registry.ListToolsOptions{})
	usage := make([]ToolUsage, 0, len(tools))
	for _, t := range tools {
		usage = append(usage, ToolUsage{
			Name:      t.Name,
			InDegree:  len(t.UsedByAgents),
			Consumers: append([]string(nil), t.UsedByAgents...),
		})
	}
	sort.SliceStable(usage, func(i, j int) bool {
		return usage[i].InDegree > usage[j].InDegree
	})
	return usage
}

// UnusedTools lists tools no agent references, sorted by name.
func (s *Service) UnusedTools() []string {
	var unused []string
	for _, t := range s.registry.ListTools(registry.ListToolsOptions{}) {
		if len(t.UsedByAgents) == 0 {
			unused = append(unused, t.Name)
		}
	}
	return unused
}

// MeanAgentSize is the average agent artifact length in lines.
func (s *Service) MeanAgentSize() float64 {
	agents := s.registry.ListAgents(registry.ListAgentsOptions{})
	if len(agents) == 0 {
		return 0
	}
	total := 0
	for _, a := range agents {
		total += a.LineCount
	}
	return float64(total) / float64(len(agents))
}

// MeanToolSize is the average tool artifact length in lines.
func (s *Service) MeanToolSize() float64 {
	tools := s.registry.ListTools(registry.ListToolsOptions{})
	if len(tools) == 0 {
		return 0
	}
	total := 0
	for _, t := range tools {
		total += t.LineCount
	}
	return float64(total) / float64(len(tools))
}

// MeanToolsPerAgent is the average uses_tools fan-out.
func (s *Service) MeanToolsPerAgent() float64 {
	agents := s.registry.ListAgents(registry.ListAgentsOptions{})
	if len(agents) == 0 {
		return 0
	}
	total := 0
	for _, a := range agents {
		total += len(a.UsesTools)
	}
	return float64(total) / float64(len(agents))
}

// RecentSuccessRate is the success fraction over the recent window.
func (s *Service) RecentSuccessRate() float64 {
	return s.history.SuccessRate(s.window)
}

// RecentAverageTime is the mean workflow duration over the recent window,
// in seconds.
func (s *Service) RecentAverageTime() float64 {
	return s.history.AverageTime(s.window)
}

// Summary computes the full snapshot.
func (s *Service) Summary() Report {
	return Report{
		MostUsedAgents:    s.MostUsedAgents(10),
		ToolsByUsage:      s.ToolsByUsage(),
		UnusedTools:       s.UnusedTools(),
		MeanAgentSize:     s.MeanAgentSize(),
		MeanToolSize:      s.MeanToolSize(),
		MeanToolsPerAgent: s.MeanToolsPerAgent(),
		RecentSuccessRate: s.RecentSuccessRate(),
		RecentAverageTime: s.RecentAverageTime(),
		TotalWorkflows:    s.history.Len(),
	}
}
