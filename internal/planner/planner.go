// Package planner turns a capability list and a registry snapshot into an
// executable plan: which components must be created, in what order, and in
// what order the agents run.
package planner

import (
	"regexp"
	"strings"

	"agentfabric/internal/capability"
	"agentfabric/internal/logging"
)

// Strategy selects how the executor walks the plan.
type Strategy string

const (
	StrategySequential  Strategy = "sequential"
	StrategyParallel    Strategy = "parallel"
	StrategyConditional Strategy = "conditional"
)

// RegistrySnapshot is the read-only registry view the planner consults.
type RegistrySnapshot interface {
	HasAgent(name string) bool
	HasTool(name string) bool
}

// MissingAgent describes an agent the oracle must generate, with the tools
// it will use and the capability that asked for it.
type MissingAgent struct {
	Name       string   `json:"name"`
	Capability string   `json:"capability"`
	Tools      []string `json:"tools"`
}

// MissingTool describes a tool the oracle must generate, with the agents
// that will consume it.
type MissingTool struct {
	Name      string   `json:"name"`
	Consumers []string `json:"consumers"`
}

// MissingComponents partitions everything the plan needs but the registry
// lacks.
type MissingComponents struct {
	Agents []MissingAgent `json:"agents"`
	Tools  []MissingTool  `json:"tools"`
}

// Empty reports whether the plan can run without any generation.
func (m MissingComponents) Empty() bool {
	return len(m.Agents) == 0 && len(m.Tools) == 0
}

// Plan is the planner's output, consumed by the orchestrator and executor.
type Plan struct {
	Request        string                  `json:"request"`
	Capabilities   []capability.Capability `json:"capabilities"`
	Complexity     capability.Complexity   `json:"complexity"`
	Strategy       Strategy                `json:"strategy"`
	Nodes          []Node                  `json:"nodes"`
	CreationOrder  []Node                  `json:"creation_order"`
	ExecutionOrder []string                `json:"execution_order"`
	Missing        MissingComponents       `json:"missing_components"`
}

// Options tune plan construction.
type Options struct {
	// WorkflowType is the caller's requested strategy; empty or "simple"
	// means sequential.
	WorkflowType string
	// FileCount feeds the complexity classifier.
	FileCount int
}

// Planner builds plans against a registry snapshot.
type Planner struct {
	registry RegistrySnapshot
	analyzer *capability.Analyzer
}

// New creates a planner over the given registry snapshot.
func New(registry RegistrySnapshot) *Planner {
	return &Planner{
		registry: registry,
		analyzer: capability.NewAnalyzer(),
	}
}

// BuildPlan analyzes the request and produces a plan. Requests that match
// no catalog entry are escalated: a single capability is synthesized from
// the request text and its agent is flagged missing, so the oracle receives
// the raw request as the generation spec.
func (p *Planner) BuildPlan(request string, opts Options) (*Plan, error) {
	caps := p.analyzer.Analyze(request)
	if len(caps) == 0 {
		caps = []capability.Capability{synthesizeCapability(request)}
	}
	complexity := p.analyzer.Classify(request, opts.FileCount, len(caps))

	g := newGraph()
	var missing MissingComponents
	toolConsumers := make(map[string][]string)

	for _, c := range caps {
		agentNode := Node{Kind: KindAgent, Name: c.Agent, Exists: p.registry.HasAgent(c.Agent)}
		g.addNode(agentNode)
		if !agentNode.Exists {
			missing.Agents = append(missing.Agents, MissingAgent{
				Name:       c.Agent,
				Capability: c.Name,
				Tools:      append([]string(nil), c.Tools...),
			})
		}
		for _, tool := range c.Tools {
			toolNode := Node{Kind: KindTool, Name: tool, Exists: p.registry.HasTool(tool)}
			g.addNode(toolNode)
			g.addEdge(toolNode, agentNode)
			if !toolNode.Exists && !contains(toolConsumers[tool], c.Agent) {
				toolConsumers[tool] = append(toolConsumers[tool], c.Agent)
			}
		}
	}

	// Missing tools in node insertion order for determinism.
	for _, n := range g.nodes {
		if n.Kind == KindTool && !n.Exists {
			missing.Tools = append(missing.Tools, MissingTool{
				Name:      n.Name,
				Consumers: toolConsumers[n.Name],
			})
		}
	}

	ordered, err := g.topoSort()
	if err != nil {
		logging.Planner().Warnw("plan rejected", "error", err)
		return nil, err
	}

	plan := &Plan{
		Request:      request,
		Capabilities: caps,
		Complexity:   complexity,
		Strategy:     strategyFor(opts.WorkflowType),
		Nodes:        ordered,
		Missing:      missing,
	}
	for _, n := range ordered {
		if !n.Exists {
			plan.CreationOrder = append(plan.CreationOrder, n)
		}
		if n.Kind == KindAgent {
			plan.ExecutionOrder = append(plan.ExecutionOrder, n.Name)
		}
	}

	logging.Planner().Debugw("plan built",
		"capabilities", len(caps),
		"complexity", complexity,
		"execution_order", plan.ExecutionOrder,
		"missing_agents", len(missing.Agents),
		"missing_tools", len(missing.Tools))
	return plan, nil
}

func strategyFor(workflowType string) Strategy {
	switch workflowType {
	case string(StrategyParallel):
		return StrategyParallel
	case string(StrategyConditional):
		return StrategyConditional
	default:
		return StrategySequential
	}
}

// =============================================================================
// CAPABILITY SYNTHESIS
// =============================================================================

var slugStripPattern = regexp.MustCompile(`[^a-z0-9_]+`)

const maxSlugWords = 4

// synthesizeCapability derives a one-agent capability from an uncataloged
// request. The agent name is a snake_case slug of the leading request words;
// its description at generation time is the raw request.
func synthesizeCapability(request string) capability.Capability {
	slug := slugify(request)
	return capability.Capability{
		Name:  slug,
		Agent: slug + "_agent",
		Tools: nil,
	}
}

func slugify(request string) string {
	words := strings.Fields(strings.ToLower(request))
	if len(words) > maxSlugWords {
		words = words[:maxSlugWords]
	}
	slug := slugStripPattern.ReplaceAllString(strings.Join(words, "_"), "")
	slug = strings.Trim(slug, "_")
	if slug == "" || slug[0] >= '0' && slug[0] <= '9' {
		slug = "custom_" + slug
		slug = strings.TrimSuffix(slug, "_")
	}
	return slug
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
