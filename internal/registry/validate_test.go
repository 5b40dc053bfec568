package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllHealthy(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	_, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)

	report := r.ValidateAll()
	assert.Equal(t, []string{"email_extractor"}, report.ValidAgents)
	assert.Equal(t, []string{"extract_emails"}, report.ValidTools)
	assert.Empty(t, report.InvalidAgents)
	assert.Empty(t, report.InvalidTools)
	assert.Empty(t, report.MissingFiles)
	assert.Empty(t, report.DependencyIssues)
}

func TestValidateAllMissingArtifact(t *testing.T) {
	r := newTestRegistry(t)
	tool := registerTestTool(t, r, "extract_emails")
	require.NoError(t, os.Remove(tool.Location))

	report := r.ValidateAll()
	assert.Equal(t, []string{"extract_emails"}, report.InvalidTools)
	assert.Contains(t, report.MissingFiles, tool.Location)
}

func TestHealthCheckBuckets(t *testing.T) {
	r := newTestRegistry(t)

	// Empty catalogs contribute nothing to the score.
	empty := r.HealthCheck()
	assert.Equal(t, StatusUnhealthy, empty.Status)
	assert.InDelta(t, 0.0, empty.Score, 0.001)

	registerTestTool(t, r, "extract_emails")
	broken := registerTestTool(t, r, "count_words")
	_, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)

	healthy := r.HealthCheck()
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.InDelta(t, 100.0, healthy.Score, 0.001)

	// One of two tools broken: 50 + 25 = 75, degraded.
	require.NoError(t, os.Remove(broken.Location))
	degraded := r.HealthCheck()
	assert.Equal(t, StatusDegraded, degraded.Status)
	assert.InDelta(t, 75.0, degraded.Score, 0.001)
}

func TestHealthCheckUnhealthy(t *testing.T) {
	r := newTestRegistry(t)
	tool := registerTestTool(t, r, "extract_emails")
	agent, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)

	require.NoError(t, os.Remove(tool.Location))
	require.NoError(t, os.Remove(agent.Location))

	report := r.HealthCheck()
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.InDelta(t, 0.0, report.Score, 0.001)
}

func TestOptimizeRemovesUnusedTools(t *testing.T) {
	r := newTestRegistry(t)
	registerTestTool(t, r, "extract_emails")
	registerTestTool(t, r, "count_words")
	_, err := r.RegisterAgent(AgentSpec{Name: "email_extractor", Source: agentSource, UsesTools: []string{"extract_emails"}})
	require.NoError(t, err)

	dry, err := r.Optimize(true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, []string{"count_words"}, dry.UnusedTools)
	assert.True(t, r.HasTool("count_words"))

	real, err := r.Optimize(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"count_words"}, real.UnusedTools)
	assert.False(t, r.HasTool("count_words"))
	assert.True(t, r.HasTool("extract_emails"))
}
