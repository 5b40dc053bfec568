package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"agentfabric/internal/config"
	"agentfabric/internal/logging"
)

// Registry holds the dual catalogs of agents and tools. All writes go
// through its mutex; readers see either the pre- or post-state of a write,
// never a mixture.
type Registry struct {
	mu     sync.RWMutex
	paths  config.PathsConfig
	agents map[string]*AgentRecord
	tools  map[string]*ToolRecord
}

// Open loads (or initializes) the registry rooted at the configured paths.
// Back-references are rebuilt from agent records on every load; the persisted
// used_by_agents lists are a cache, not the source of truth.
func Open(paths config.PathsConfig) (*Registry, error) {
	for _, dir := range []string{paths.DataDir, paths.AgentArtifactsDir(), paths.ToolArtifactsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir %s: %w", dir, err)
		}
	}

	r := &Registry{
		paths:  paths,
		agents: make(map[string]*AgentRecord),
		tools:  make(map[string]*ToolRecord),
	}

	if err := r.loadAll(); err != nil {
		return nil, err
	}
	r.rebuildBackRefs()

	logging.Registry().Debugw("registry opened",
		"agents", len(r.agents), "tools", len(r.tools), "dir", paths.DataDir)
	return r, nil
}

// ToolSpec carries everything needed to register a tool.
type ToolSpec struct {
	Name         string
	Description  string
	Source       string
	Signature    string
	Tags         []string
	PureFunction bool
	Replace      bool
}

// AgentSpec carries everything needed to register an agent.
type AgentSpec struct {
	Name         string
	Description  string
	Source       string
	UsesTools    []string
	InputSchema  map[string]string
	OutputSchema map[string]string
	Tags         []string
	Replace      bool
}

// RegisterTool registers a tool, writing its source artifact and persisting
// the tool document. Registration is idempotent on (name, checksum): the
// same source is a no-op returning the existing record. A different source
// for an existing name fails with ErrNameConflict unless Replace is set.
func (r *Registry) RegisterTool(spec ToolSpec) (*ToolRecord, error) {
	if !ValidName(spec.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, spec.Name)
	}
	if spec.Source == "" {
		return nil, fmt.Errorf("%w: tool %s", ErrEmptySource, spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	checksum := Checksum(spec.Source)
	if existing, ok := r.tools[spec.Name]; ok {
		if existing.Checksum == checksum {
			// Idempotent re-registration; restore the artifact if it went
			// missing on disk.
			if !fileExists(existing.Location) {
				if err := writeFileAtomic(existing.Location, []byte(spec.Source)); err != nil {
					return nil, fmt.Errorf("restore tool artifact: %w", err)
				}
			}
			return existing.Clone(), nil
		}
		if !spec.Replace {
			return nil, fmt.Errorf("%w: tool %s already registered with different source", ErrNameConflict, spec.Name)
		}
	}

	location := filepath.Join(r.paths.ToolArtifactsDir(), spec.Name+".go")
	if err := writeFileAtomic(location, []byte(spec.Source)); err != nil {
		return nil, fmt.Errorf("write tool artifact: %w", err)
	}

	signature := spec.Signature
	if signature == "" {
		signature = fmt.Sprintf("func %s(input interface{}) interface{}", spec.Name)
	}

	rec := &ToolRecord{
		Name:           spec.Name,
		Description:    spec.Description,
		Signature:      signature,
		Location:       location,
		Checksum:       checksum,
		Tags:           append([]string(nil), spec.Tags...),
		IsPureFunction: spec.PureFunction,
		UsedByAgents:   []string{},
		LineCount:      countLines(spec.Source),
		CreatedAt:      time.Now().UTC(),
	}
	if existing, ok := r.tools[spec.Name]; ok {
		// Replacement keeps identity-level state: consumers and birth time.
		rec.UsedByAgents = append([]string(nil), existing.UsedByAgents...)
		rec.CreatedAt = existing.CreatedAt
	}
	r.tools[spec.Name] = rec

	if err := r.saveToolsLocked(); err != nil {
		return nil, err
	}

	logging.Registry().Infow("tool registered", "name", spec.Name, "lines", rec.LineCount)
	return rec.Clone(), nil
}

// RegisterAgent registers an agent. Every referenced tool must already
// exist (ErrMissingDependency otherwise). Back-references on the referenced
// tools are updated atomically with the agent write.
func (r *Registry) RegisterAgent(spec AgentSpec) (*AgentRecord, error) {
	if !ValidName(spec.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, spec.Name)
	}
	if spec.Source == "" {
		return nil, fmt.Errorf("%w: agent %s", ErrEmptySource, spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	usesTools := dedupe(spec.UsesTools)
	for _, tool := range usesTools {
		if _, ok := r.tools[tool]; !ok {
			return nil, fmt.Errorf("%w: agent %s requires unknown tool %s", ErrMissingDependency, spec.Name, tool)
		}
	}

	checksum := Checksum(spec.Source)
	prev, exists := r.agents[spec.Name]
	if exists {
		if prev.Checksum == checksum {
			if !fileExists(prev.Location) {
				if err := writeFileAtomic(prev.Location, []byte(spec.Source)); err != nil {
					return nil, fmt.Errorf("restore agent artifact: %w", err)
				}
			}
			return prev.Clone(), nil
		}
		if !spec.Replace {
			return nil, fmt.Errorf("%w: agent %s already registered with different source", ErrNameConflict, spec.Name)
		}
	}

	location := filepath.Join(r.paths.AgentArtifactsDir(), spec.Name+".go")
	if err := writeFileAtomic(location, []byte(spec.Source)); err != nil {
		return nil, fmt.Errorf("write agent artifact: %w", err)
	}

	inputSchema := spec.InputSchema
	if inputSchema == nil {
		inputSchema = map[string]string{"data": "any"}
	}
	outputSchema := spec.OutputSchema
	if outputSchema == nil {
		outputSchema = map[string]string{"data": "any"}
	}

	rec := &AgentRecord{
		Name:         spec.Name,
		Description:  spec.Description,
		UsesTools:    usesTools,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		Tags:         append([]string(nil), spec.Tags...),
		Location:     location,
		Checksum:     checksum,
		LineCount:    countLines(spec.Source),
		CreatedAt:    time.Now().UTC(),
		Active:       true,
	}
	if exists {
		rec.CreatedAt = prev.CreatedAt
		rec.ExecutionCount = prev.ExecutionCount
		rec.AvgExecutionTime = prev.AvgExecutionTime
		rec.LastExecuted = prev.LastExecuted

		// Detach back-references the replacement no longer holds.
		for _, tool := range prev.UsesTools {
			if !contains(usesTools, tool) {
				r.detachBackRefLocked(tool, spec.Name)
			}
		}
	}
	r.agents[spec.Name] = rec

	for _, tool := range usesTools {
		r.attachBackRefLocked(tool, spec.Name)
	}

	if err := r.saveAllLocked(); err != nil {
		return nil, err
	}

	logging.Registry().Infow("agent registered",
		"name", spec.Name, "tools", usesTools, "lines", rec.LineCount)
	return rec.Clone(), nil
}

// GetTool returns a copy of the named tool record.
func (r *Registry) GetTool(name string) (*ToolRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// GetAgent returns a copy of the named agent record.
func (r *Registry) GetAgent(name string) (*AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// HasTool reports whether the named tool exists.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// HasAgent reports whether the named agent exists.
func (r *Registry) HasAgent(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// ListToolsOptions filters ListTools output.
type ListToolsOptions struct {
	Tags     []string
	PureOnly bool
}

// ListTools returns tool records sorted by name.
func (r *Registry) ListTools(opts ListToolsOptions) []*ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolRecord, 0, len(r.tools))
	for _, rec := range r.tools {
		if opts.PureOnly && !rec.IsPureFunction {
			continue
		}
		if !anyTagMatches(rec.Tags, opts.Tags) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAgentsOptions filters ListAgents output.
type ListAgentsOptions struct {
	Tags       []string
	ActiveOnly bool
}

// ListAgents returns agent records sorted by name.
func (r *Registry) ListAgents(opts ListAgentsOptions) []*AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		if opts.ActiveOnly && !rec.Active {
			continue
		}
		if !anyTagMatches(rec.Tags, opts.Tags) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RemoveTool removes a tool and its artifact. Fails with ErrToolInUse while
// any agent still lists it; callers must detach first.
func (r *Registry) RemoveTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("%w: tool %s", ErrNotFound, name)
	}
	if len(rec.UsedByAgents) > 0 {
		return fmt.Errorf("%w: tool %s used by %v", ErrToolInUse, name, rec.UsedByAgents)
	}

	delete(r.tools, name)
	if err := r.saveToolsLocked(); err != nil {
		return err
	}
	if err := os.Remove(rec.Location); err != nil && !os.IsNotExist(err) {
		logging.Registry().Warnw("tool artifact not removed", "name", name, "error", err)
	}

	logging.Registry().Infow("tool removed", "name", name)
	return nil
}

// RemoveAgent removes an agent, detaching its back-references.
func (r *Registry) RemoveAgent(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[name]
	if !ok {
		return fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}

	delete(r.agents, name)
	for _, tool := range rec.UsesTools {
		r.detachBackRefLocked(tool, name)
	}
	if err := r.saveAllLocked(); err != nil {
		return err
	}
	if err := os.Remove(rec.Location); err != nil && !os.IsNotExist(err) {
		logging.Registry().Warnw("agent artifact not removed", "name", name, "error", err)
	}

	logging.Registry().Infow("agent removed", "name", name)
	return nil
}

// SetAgentActive flips the active flag without deleting the record.
func (r *Registry) SetAgentActive(name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[name]
	if !ok {
		return fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}
	rec.Active = active
	return r.saveAgentsLocked()
}

// MarkAgentUsed records one execution of the agent with its duration,
// maintaining a running average.
func (r *Registry) MarkAgentUsed(name string, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[name]
	if !ok {
		return fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}

	seconds := duration.Seconds()
	total := rec.AvgExecutionTime*float64(rec.ExecutionCount) + seconds
	rec.ExecutionCount++
	rec.AvgExecutionTime = total / float64(rec.ExecutionCount)
	rec.LastExecuted = time.Now().UTC()

	return r.saveAgentsLocked()
}

// GetToolUsage returns the agents currently using the named tool.
func (r *Registry) GetToolUsage(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: tool %s", ErrNotFound, name)
	}
	return append([]string(nil), rec.UsedByAgents...), nil
}

// Dependencies describes an agent's tool requirements.
type Dependencies struct {
	Tools        []string `json:"tools"`
	MissingTools []string `json:"missing_tools"`
}

// GetAgentDependencies returns the tools an agent requires and which of them
// are missing from the registry.
func (r *Registry) GetAgentDependencies(name string) (Dependencies, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[name]
	if !ok {
		return Dependencies{}, fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}

	deps := Dependencies{Tools: append([]string(nil), rec.UsesTools...)}
	for _, tool := range rec.UsesTools {
		if _, ok := r.tools[tool]; !ok {
			deps.MissingTools = append(deps.MissingTools, tool)
		}
	}
	return deps, nil
}

// Stats summarizes the registry contents.
type Stats struct {
	TotalAgents     int     `json:"total_agents"`
	TotalTools      int     `json:"total_tools"`
	TotalExecutions int     `json:"total_executions"`
	AvgAgentLines   float64 `json:"avg_agent_lines"`
	AvgToolLines    float64 `json:"avg_tool_lines"`
	ToolReuseCount  int     `json:"tool_reuse_count"`
	MostUsedAgent   string  `json:"most_used_agent,omitempty"`
	NewestAgent     string  `json:"newest_agent,omitempty"`
}

// GetStats computes registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked()
}

func (r *Registry) statsLocked() Stats {
	s := Stats{TotalAgents: len(r.agents), TotalTools: len(r.tools)}

	var agentLines, toolLines int
	var mostUsed, newest *AgentRecord
	for _, a := range r.agents {
		agentLines += a.LineCount
		s.TotalExecutions += a.ExecutionCount
		if mostUsed == nil || a.ExecutionCount > mostUsed.ExecutionCount {
			mostUsed = a
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	for _, t := range r.tools {
		toolLines += t.LineCount
		s.ToolReuseCount += len(t.UsedByAgents)
	}

	if len(r.agents) > 0 {
		s.AvgAgentLines = float64(agentLines) / float64(len(r.agents))
		s.MostUsedAgent = mostUsed.Name
		s.NewestAgent = newest.Name
	}
	if len(r.tools) > 0 {
		s.AvgToolLines = float64(toolLines) / float64(len(r.tools))
	}
	return s
}

// SaveAll persists both registry documents.
func (r *Registry) SaveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveAllLocked()
}

// Paths exposes the configured registry paths.
func (r *Registry) Paths() config.PathsConfig {
	return r.paths
}

// attachBackRefLocked adds agent to tool's used_by_agents if absent.
func (r *Registry) attachBackRefLocked(tool, agent string) {
	rec, ok := r.tools[tool]
	if !ok {
		return
	}
	if !contains(rec.UsedByAgents, agent) {
		rec.UsedByAgents = append(rec.UsedByAgents, agent)
		sort.Strings(rec.UsedByAgents)
	}
}

// detachBackRefLocked removes agent from tool's used_by_agents.
func (r *Registry) detachBackRefLocked(tool, agent string) {
	rec, ok := r.tools[tool]
	if !ok {
		return
	}
	out := rec.UsedByAgents[:0]
	for _, a := range rec.UsedByAgents {
		if a != agent {
			out = append(out, a)
		}
	}
	rec.UsedByAgents = out
}

// rebuildBackRefs recomputes every tool's used_by_agents from the agent
// records. Runs on load; persisted back-references are advisory only.
func (r *Registry) rebuildBackRefs() {
	for _, t := range r.tools {
		t.UsedByAgents = t.UsedByAgents[:0]
	}
	for _, a := range r.agents {
		for _, tool := range a.UsesTools {
			r.attachBackRefLocked(tool, a.Name)
		}
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
