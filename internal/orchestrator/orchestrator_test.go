package orchestrator

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfabric/internal/capability"
	"agentfabric/internal/config"
	"agentfabric/internal/executor"
	"agentfabric/internal/history"
	"agentfabric/internal/loader"
	"agentfabric/internal/oracle"
	"agentfabric/internal/planner"
	"agentfabric/internal/registry"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry, *history.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths = config.PathsFor(t.TempDir())
	cfg.History.Durable = false

	reg, err := registry.Open(cfg.Paths)
	require.NoError(t, err)
	hist, err := history.Open(cfg.History, "")
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	o := New(cfg, reg, oracle.NewTemplateOracle(), loader.New(reg), hist)
	return o, reg, hist
}

func envelopeData(t *testing.T, result *WorkflowResult, agent string) map[string]interface{} {
	t.Helper()
	env, ok := result.Results[agent].(map[string]interface{})
	require.True(t, ok, "missing envelope for %s", agent)
	require.Equal(t, executor.StatusSuccess, env["status"])
	data, ok := env["data"].(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestEmailExtractionEndToEnd(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(),
		"Extract emails from: Contact us at foo@bar.com or baz@qux.io",
		nil, Options{AutoCreate: true})

	require.Equal(t, executor.StatusSuccess, result.Status)
	require.Equal(t, 1, result.Metadata.Steps)
	assert.Equal(t, 2, result.Metadata.ComponentsCreated)
	assert.True(t, reg.HasAgent("email_extractor"))

	data := envelopeData(t, result, "email_extractor")
	assert.Equal(t, []string{"foo@bar.com", "baz@qux.io"}, data["emails"])
	assert.Equal(t, 2, data["count"])
	assert.Equal(t, map[string]int{"bar.com": 1, "qux.io": 1}, data["domains"])

	assert.NotEmpty(t, result.Response)
	assert.NotEmpty(t, result.WorkflowID)
}

func TestWordCountQuotedTarget(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(),
		`Count words in "the quick brown fox jumps"`,
		nil, Options{AutoCreate: true})

	require.Equal(t, executor.StatusSuccess, result.Status)
	data := envelopeData(t, result, "word_counter")
	assert.Equal(t, 5, data["word_count"])
}

func TestTwoStepPipeline(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(),
		"Extract URLs from https://example.com and then count the words in the original text.",
		nil, Options{AutoCreate: true})

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, string(capability.Pipeline), result.Metadata.Complexity)
	require.Equal(t, 2, result.Metadata.Steps)

	envelopeData(t, result, "url_extractor")
	envelopeData(t, result, "word_counter")
}

func TestMissingComponentAutoCreate(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)
	_, err := EnsureSeedComponents(context.Background(), reg, oracle.NewTemplateOracle())
	require.NoError(t, err)
	require.NoError(t, reg.RemoveAgent("password_strength_analyzer"))

	result := o.ProcessRequest(context.Background(),
		"Analyze password strength of: Passw0rd!, hunter2",
		nil, Options{AutoCreate: true})

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.Metadata.ComponentsCreated)
	assert.True(t, reg.HasAgent("password_strength_analyzer"))

	data := envelopeData(t, result, "password_strength_analyzer")
	strengths, ok := data["strengths"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Strong", strengths["Passw0rd!"])
	assert.Equal(t, "Weak", strengths["hunter2"])
}

func TestMissingComponentWithoutAutoCreate(t *testing.T) {
	o, _, hist := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(),
		"Extract emails from: foo@bar.com",
		nil, Options{})

	assert.Equal(t, executor.StatusError, result.Status)
	assert.Zero(t, result.Metadata.ComponentsCreated)
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, 1, hist.Len())
}

func TestStepFailureRecoversThroughAdaptation(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)
	_, err := EnsureSeedComponents(context.Background(), reg, oracle.NewTemplateOracle())
	require.NoError(t, err)

	rec, ok := reg.GetTool("count_words")
	require.True(t, ok)
	require.NoError(t, os.Remove(rec.Location))

	result := o.ProcessRequest(context.Background(),
		`Count words in "one two three"`,
		nil, Options{})

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.Metadata.Adaptations)

	data := envelopeData(t, result, "word_counter")
	assert.Equal(t, 3, data["word_count"])
}

type cyclicPlanner struct{}

func (cyclicPlanner) BuildPlan(string, planner.Options) (*planner.Plan, error) {
	return nil, &planner.CycleError{Nodes: []string{"agent/a", "agent/b"}}
}

func TestCycleRefusal(t *testing.T) {
	o, reg, hist := newTestOrchestrator(t)
	o.planner = cyclicPlanner{}

	result := o.ProcessRequest(context.Background(),
		"Extract emails from: foo@bar.com",
		nil, Options{AutoCreate: true})

	assert.Equal(t, executor.StatusError, result.Status)
	assert.Empty(t, result.Results)
	assert.Zero(t, result.Metadata.ComponentsCreated)
	assert.Empty(t, reg.ListAgents(registry.ListAgentsOptions{}))

	require.Equal(t, 1, hist.Len())
	entry := hist.Recent(1)[0]
	assert.Equal(t, "error", entry.Status)
	assert.Empty(t, entry.Steps)
}

func TestEmptyRequestRejectedBeforeHistory(t *testing.T) {
	o, _, hist := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(), "   ", nil, Options{})

	assert.Equal(t, executor.StatusError, result.Status)
	assert.Zero(t, hist.Len())
}

func TestSeedComponentsIdempotent(t *testing.T) {
	_, reg, _ := newTestOrchestrator(t)
	tmpl := oracle.NewTemplateOracle()

	first, err := EnsureSeedComponents(context.Background(), reg, tmpl)
	require.NoError(t, err)
	assert.Greater(t, first, 0)

	second, err := EnsureSeedComponents(context.Background(), reg, tmpl)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestHistoryRecordsSuccessfulRun(t *testing.T) {
	o, _, hist := newTestOrchestrator(t)

	result := o.ProcessRequest(context.Background(),
		"Extract emails from: foo@bar.com",
		nil, Options{AutoCreate: true})
	require.Equal(t, executor.StatusSuccess, result.Status)

	require.Equal(t, 1, hist.Len())
	entry := hist.Recent(1)[0]
	assert.Equal(t, result.WorkflowID, entry.WorkflowID)
	assert.Equal(t, "simple", entry.Type)
	require.Len(t, entry.Steps, 1)
	assert.Equal(t, "email_extractor", entry.Steps[0].Agent)
}

func TestActiveWorkflowsEmptyWhenIdle(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	assert.Empty(t, o.ActiveWorkflows())
	assert.False(t, o.Cancel("nope"))
}
