package registry

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfabric/internal/config"
)

const toolSource = `package main

func extract_emails(input interface{}) interface{} {
	return []string{}
}
`

const toolSourceV2 = `package main

func extract_emails(input interface{}) interface{} {
	return map[string]interface{}{}
}
`

const agentSource = `package main

func email_extractor_agent(state map[string]interface{}) map[string]interface{} {
	return state
}
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(config.PathsFor(t.TempDir()))
	require.NoError(t, err)
	return r
}

func registerTestTool(t *testing.T, r *Registry, name string) *ToolRecord {
	t.Helper()
	rec, err := r.RegisterTool(ToolSpec{
		Name:         name,
		Description:  "test tool",
		Source:       toolSource,
		PureFunction: true,
	})
	require.NoError(t, err)
	return rec
}

func TestRegisterToolWritesArtifact(t *testing.T) {
	r := newTestRegistry(t)

	rec := registerTestTool(t, r, "extract_emails")
	assert.Equal(t, "extract_emails", rec.Name)
	assert.NotEmpty(t, rec.Checksum)
	assert.FileExists(t, rec.Location)
	assert.Equal(t, 5, rec.LineCount)
}

func TestRegisterToolIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	first := registerTestTool(t, r, "extract_emails")
	second, err := r.RegisterTool(ToolSpec{Name: "extract_emails", Source: toolSource})
	require.NoError(t, err)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestRegisterToolNameConflict(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")

	_, err := r.RegisterTool(ToolSpec{Name: "extract_emails", Source: toolSourceV2})
	assert.ErrorIs(t, err, ErrNameConflict)

	// Replace is the explicit escape hatch.
	rec, err := r.RegisterTool(ToolSpec{Name: "extract_emails", Source: toolSourceV2, Replace: true})
	require.NoError(t, err)
	assert.Equal(t, Checksum(toolSourceV2), rec.Checksum)
}

func TestRegisterToolRejectsBadNames(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"", "Extract_Emails", "9tool", "tool-name", "tool name"} {
		_, err := r.RegisterTool(ToolSpec{Name: name, Source: toolSource})
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestRegisterAgentRequiresTools(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.RegisterAgent(AgentSpec{
		Name:      "email_extractor",
		Source:    agentSource,
		UsesTools: []string{"extract_emails"},
	})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestBackReferenceMaintenance(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	registerTestTool(t, r, "count_words")

	_, err := r.RegisterAgent(AgentSpec{
		Name:      "email_extractor",
		Source:    agentSource,
		UsesTools: []string{"extract_emails", "extract_emails"}, // duplicates ignored
	})
	require.NoError(t, err)

	usage, err := r.GetToolUsage("extract_emails")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_extractor"}, usage)

	// Replacement that drops the tool detaches the back-reference.
	_, err = r.RegisterAgent(AgentSpec{
		Name:      "email_extractor",
		Source:    agentSource + "\n// v2\n",
		UsesTools: []string{"count_words"},
		Replace:   true,
	})
	require.NoError(t, err)

	usage, err = r.GetToolUsage("extract_emails")
	require.NoError(t, err)
	assert.Empty(t, usage)

	usage, err = r.GetToolUsage("count_words")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_extractor"}, usage)

	// Removal detaches as well.
	require.NoError(t, r.RemoveAgent("email_extractor"))
	usage, err = r.GetToolUsage("count_words")
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestRemoveToolInUse(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	_, err := r.RegisterAgent(AgentSpec{
		Name:      "email_extractor",
		Source:    agentSource,
		UsesTools: []string{"extract_emails"},
	})
	require.NoError(t, err)

	err = r.RemoveTool("extract_emails")
	assert.ErrorIs(t, err, ErrToolInUse)

	require.NoError(t, r.RemoveAgent("email_extractor"))
	require.NoError(t, r.RemoveTool("extract_emails"))
	assert.False(t, r.HasTool("extract_emails"))
}

func TestMarkAgentUsedMaintainsAverage(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	_, err := r.RegisterAgent(AgentSpec{
		Name:      "email_extractor",
		Source:    agentSource,
		UsesTools: []string{"extract_emails"},
	})
	require.NoError(t, err)

	require.NoError(t, r.MarkAgentUsed("email_extractor", 2*time.Second))
	require.NoError(t, r.MarkAgentUsed("email_extractor", 4*time.Second))

	rec, ok := r.GetAgent("email_extractor")
	require.True(t, ok)
	assert.Equal(t, 2, rec.ExecutionCount)
	assert.InDelta(t, 3.0, rec.AvgExecutionTime, 0.001)
	assert.False(t, rec.LastExecuted.IsZero())
}

func TestPersistenceRoundTrip(t *testing.T) {
	paths := config.PathsFor(t.TempDir())

	r, err := Open(paths)
	require.NoError(t, err)
	registerTestTool(t, r, "extract_emails")
	_, err = r.RegisterAgent(AgentSpec{
		Name:        "email_extractor",
		Description: "extracts emails",
		Source:      agentSource,
		UsesTools:   []string{"extract_emails"},
		InputSchema: map[string]string{"text": "string"},
		Tags:        []string{"extraction"},
	})
	require.NoError(t, err)

	// Reopen from disk; back-references must be rebuilt.
	reopened, err := Open(paths)
	require.NoError(t, err)

	agent, ok := reopened.GetAgent("email_extractor")
	require.True(t, ok)
	assert.Equal(t, []string{"extract_emails"}, agent.UsesTools)
	assert.Equal(t, "string", agent.InputSchema["text"])
	assert.True(t, agent.Active)

	usage, err := reopened.GetToolUsage("extract_emails")
	require.NoError(t, err)
	assert.Equal(t, []string{"email_extractor"}, usage)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(config.PathsFor(dir))
	require.NoError(t, err)
	registerTestTool(t, r, "extract_emails")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestListFilters(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.RegisterTool(ToolSpec{Name: "extract_emails", Source: toolSource, Tags: []string{"extraction"}, PureFunction: true})
	require.NoError(t, err)
	_, err = r.RegisterTool(ToolSpec{Name: "build_report", Source: toolSource, Tags: []string{"reporting"}})
	require.NoError(t, err)

	all := r.ListTools(ListToolsOptions{})
	assert.Len(t, all, 2)
	assert.Equal(t, "build_report", all[0].Name) // sorted

	pure := r.ListTools(ListToolsOptions{PureOnly: true})
	require.Len(t, pure, 1)
	assert.Equal(t, "extract_emails", pure[0].Name)

	tagged := r.ListTools(ListToolsOptions{Tags: []string{"reporting"}})
	require.Len(t, tagged, 1)
	assert.Equal(t, "build_report", tagged[0].Name)
}

func TestListAgentsActiveOnly(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")

	for _, name := range []string{"email_extractor", "url_extractor"} {
		_, err := r.RegisterAgent(AgentSpec{Name: name, Source: agentSource + "// " + name + "\n", UsesTools: []string{"extract_emails"}})
		require.NoError(t, err)
	}
	require.NoError(t, r.SetAgentActive("url_extractor", false))

	active := r.ListAgents(ListAgentsOptions{ActiveOnly: true})
	require.Len(t, active, 1)
	assert.Equal(t, "email_extractor", active[0].Name)
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	_, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)
	require.NoError(t, r.MarkAgentUsed("email_extractor", time.Second))

	stats := r.GetStats()
	assert.Equal(t, 1, stats.TotalAgents)
	assert.Equal(t, 1, stats.TotalTools)
	assert.Equal(t, 1, stats.TotalExecutions)
	assert.Equal(t, 1, stats.ToolReuseCount)
	assert.Equal(t, "email_extractor", stats.MostUsedAgent)
	assert.Equal(t, "email_extractor", stats.NewestAgent)
}

func TestSearch(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterTool(ToolSpec{Name: "extract_emails", Description: "Pulls email addresses from text", Source: toolSource})
	require.NoError(t, err)

	assert.Len(t, r.SearchTools("EMAIL"), 1)
	assert.Len(t, r.SearchTools("sentiment"), 0)
}

func TestGetAgentDependencies(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	_, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)

	deps, err := r.GetAgentDependencies("email_extractor")
	require.NoError(t, err)
	assert.Equal(t, []string{"extract_emails"}, deps.Tools)
	assert.Empty(t, deps.MissingTools)

	_, err = r.GetAgentDependencies("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
