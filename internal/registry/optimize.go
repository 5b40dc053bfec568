package registry

import (
	"os"
	"sort"
	"strings"

	"agentfabric/internal/logging"
)

// SearchAgents returns agents whose name or description contains the query,
// case-insensitively, sorted by name.
func (r *Registry) SearchAgents(query string) []*AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*AgentRecord
	for _, rec := range r.agents {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SearchTools returns tools whose name or description contains the query,
// case-insensitively, sorted by name.
func (r *Registry) SearchTools(query string) []*ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*ToolRecord
	for _, rec := range r.tools {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OptimizeReport describes what an optimization pass removed (or would).
type OptimizeReport struct {
	UnusedTools []string `json:"unused_tools"`
	DryRun      bool     `json:"dry_run"`
}

// Optimize removes tools no agent references. In dry-run mode it only
// reports what would be removed. Agents are never deleted here; inactive
// agents are left for the operator to prune.
func (r *Registry) Optimize(dryRun bool) (OptimizeReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := OptimizeReport{DryRun: dryRun}
	for _, name := range sortedToolNames(r.tools) {
		if len(r.tools[name].UsedByAgents) == 0 {
			report.UnusedTools = append(report.UnusedTools, name)
		}
	}

	if dryRun || len(report.UnusedTools) == 0 {
		return report, nil
	}

	for _, name := range report.UnusedTools {
		rec := r.tools[name]
		delete(r.tools, name)
		if err := os.Remove(rec.Location); err != nil && !os.IsNotExist(err) {
			logging.Registry().Warnw("unused tool artifact not removed", "name", name, "error", err)
		}
	}
	if err := r.saveToolsLocked(); err != nil {
		return report, err
	}

	logging.Registry().Infow("optimization pass removed unused tools", "count", len(report.UnusedTools))
	return report, nil
}
