// Package registry provides the durable catalog of agents and tools, their
// dependency edges and usage statistics. It is the only mutable shared
// resource in the fabric: one writer, many readers.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// ToolRecord describes a registered pure-function tool.
type ToolRecord struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Signature      string    `json:"signature"`
	Location       string    `json:"location"`
	Checksum       string    `json:"checksum"`
	Tags           []string  `json:"tags"`
	IsPureFunction bool      `json:"is_pure_function"`
	UsedByAgents   []string  `json:"used_by_agents"`
	LineCount      int       `json:"line_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// AgentRecord describes a registered state-transforming agent.
type AgentRecord struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	UsesTools        []string          `json:"uses_tools"`
	InputSchema      map[string]string `json:"input_schema"`
	OutputSchema     map[string]string `json:"output_schema"`
	Tags             []string          `json:"tags"`
	Location         string            `json:"location"`
	Checksum         string            `json:"checksum"`
	ExecutionCount   int               `json:"execution_count"`
	AvgExecutionTime float64           `json:"avg_execution_time"`
	LastExecuted     time.Time         `json:"last_executed,omitempty"`
	LineCount        int               `json:"line_count"`
	CreatedAt        time.Time         `json:"created_at"`
	Active           bool              `json:"active"`
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (t *ToolRecord) Clone() *ToolRecord {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.UsedByAgents = append([]string(nil), t.UsedByAgents...)
	return &c
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (a *AgentRecord) Clone() *AgentRecord {
	c := *a
	c.UsesTools = append([]string(nil), a.UsesTools...)
	c.Tags = append([]string(nil), a.Tags...)
	c.InputSchema = cloneSchema(a.InputSchema)
	c.OutputSchema = cloneSchema(a.OutputSchema)
	return &c
}

func cloneSchema(s map[string]string) map[string]string {
	if s == nil {
		return nil
	}
	c := make(map[string]string, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// HasTag reports whether the agent carries the given tag.
func (a *AgentRecord) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// namePattern enforces lowercase snake_case identity for all components.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name is a legal component name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Checksum computes the registration identity hash of source text.
func Checksum(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

func countLines(source string) int {
	if source == "" {
		return 0
	}
	return len(strings.Split(strings.TrimRight(source, "\n"), "\n"))
}

func anyTagMatches(recordTags, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		for _, t := range recordTags {
			if t == w {
				return true
			}
		}
	}
	return false
}
