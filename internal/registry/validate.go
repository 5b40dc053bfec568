package registry

import (
	"fmt"
	"os"
	"sort"
)

// ValidationReport is the result of a full registry cross-check.
type ValidationReport struct {
	ValidAgents      []string `json:"valid_agents"`
	InvalidAgents    []string `json:"invalid_agents"`
	ValidTools       []string `json:"valid_tools"`
	InvalidTools     []string `json:"invalid_tools"`
	MissingFiles     []string `json:"missing_files"`
	DependencyIssues []string `json:"dependency_issues"`
}

// ValidateAll cross-checks every record. An agent is invalid iff its source
// artifact is missing or any of its uses_tools is unknown. A tool is invalid
// iff its source artifact is missing.
func (r *Registry) ValidateAll() ValidationReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := ValidationReport{
		ValidAgents:      []string{},
		InvalidAgents:    []string{},
		ValidTools:       []string{},
		InvalidTools:     []string{},
		MissingFiles:     []string{},
		DependencyIssues: []string{},
	}

	for _, name := range sortedAgentNames(r.agents) {
		rec := r.agents[name]
		valid := true

		if !fileExists(rec.Location) {
			valid = false
			report.MissingFiles = append(report.MissingFiles, rec.Location)
		}
		for _, tool := range rec.UsesTools {
			if _, ok := r.tools[tool]; !ok {
				valid = false
				report.DependencyIssues = append(report.DependencyIssues,
					fmt.Sprintf("agent %s requires unknown tool %s", name, tool))
			}
		}

		if valid {
			report.ValidAgents = append(report.ValidAgents, name)
		} else {
			report.InvalidAgents = append(report.InvalidAgents, name)
		}
	}

	for _, name := range sortedToolNames(r.tools) {
		rec := r.tools[name]
		if fileExists(rec.Location) {
			report.ValidTools = append(report.ValidTools, name)
		} else {
			report.InvalidTools = append(report.InvalidTools, name)
			report.MissingFiles = append(report.MissingFiles, rec.Location)
		}
	}

	return report
}

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthReport is a scored summary of registry health.
type HealthReport struct {
	Score        float64          `json:"score"`
	Status       string           `json:"status"`
	TotalAgents  int              `json:"total_agents"`
	ValidAgents  int              `json:"valid_agents"`
	TotalTools   int              `json:"total_tools"`
	ValidTools   int              `json:"valid_tools"`
	Validation   ValidationReport `json:"validation"`
}

// HealthCheck scores the registry: half the weight on the valid-agent
// fraction, half on the valid-tool fraction. An empty catalog contributes
// nothing, so a fresh registry scores zero.
func (r *Registry) HealthCheck() HealthReport {
	validation := r.ValidateAll()

	report := HealthReport{
		TotalAgents: len(validation.ValidAgents) + len(validation.InvalidAgents),
		ValidAgents: len(validation.ValidAgents),
		TotalTools:  len(validation.ValidTools) + len(validation.InvalidTools),
		ValidTools:  len(validation.ValidTools),
		Validation:  validation,
	}

	if report.TotalAgents > 0 {
		report.Score += 50 * float64(report.ValidAgents) / float64(report.TotalAgents)
	}
	if report.TotalTools > 0 {
		report.Score += 50 * float64(report.ValidTools) / float64(report.TotalTools)
	}

	switch {
	case report.Score >= 80:
		report.Status = StatusHealthy
	case report.Score >= 50:
		report.Status = StatusDegraded
	default:
		report.Status = StatusUnhealthy
	}
	return report
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedAgentNames(m map[string]*AgentRecord) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedToolNames(m map[string]*ToolRecord) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
