package adaptation

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfabric/internal/config"
	"agentfabric/internal/executor"
	"agentfabric/internal/loader"
	"agentfabric/internal/oracle"
	"agentfabric/internal/registry"
)

func newFixture(t *testing.T) (*registry.Registry, *loader.Loader, *Controller) {
	t.Helper()
	reg, err := registry.Open(config.PathsFor(t.TempDir()))
	require.NoError(t, err)
	l := loader.New(reg)
	c := New(reg, oracle.NewTemplateOracle(), l, 3)
	return reg, l, c
}

func registerPair(t *testing.T, reg *registry.Registry, agentName string, tools []string, tags []string) {
	t.Helper()
	o := oracle.NewTemplateOracle()
	ctx := context.Background()

	for _, tool := range tools {
		source, err := o.Generate(ctx, oracle.KindTool, tool, oracle.Spec{})
		require.NoError(t, err)
		_, err = reg.RegisterTool(registry.ToolSpec{Name: tool, Source: source, PureFunction: true})
		require.NoError(t, err)
	}
	source, err := o.Generate(ctx, oracle.KindAgent, agentName, oracle.Spec{UsesTools: tools})
	require.NoError(t, err)
	_, err = reg.RegisterAgent(registry.AgentSpec{
		Name:        agentName,
		Source:      source,
		UsesTools:   tools,
		Tags:        tags,
		InputSchema: map[string]string{"text": "string"},
	})
	require.NoError(t, err)
}

func TestRegenerateAfterDeletedArtifact(t *testing.T) {
	reg, l, c := newFixture(t)
	registerPair(t, reg, "word_counter", []string{"count_words"}, nil)

	rec, ok := reg.GetTool("count_words")
	require.True(t, ok)
	require.NoError(t, os.Remove(rec.Location))

	// The load fails, the controller regenerates, and the retry loads.
	_, err := l.Agent("word_counter")
	require.ErrorIs(t, err, loader.ErrLoadFailure)

	decision := c.OnStepFailure(context.Background(), "word_counter", err)
	assert.Equal(t, executor.ActionRetry, decision.Action)
	assert.Equal(t, "regenerate", decision.Entry.Action)
	assert.Equal(t, 1, c.Used())

	fn, err := l.Agent("word_counter")
	require.NoError(t, err)
	require.NotNil(t, fn)
}

func TestRegenerateUnknownAgentFallsBackToRecord(t *testing.T) {
	_, l, c := newFixture(t)

	loadErr := func() error {
		_, err := l.Agent("ghost")
		return err
	}()
	require.ErrorIs(t, loadErr, loader.ErrLoadFailure)

	decision := c.OnStepFailure(context.Background(), "ghost", loadErr)
	assert.Equal(t, executor.ActionRecord, decision.Action)
	assert.Contains(t, decision.Entry.Outcome, "regeneration failed")
}

func TestSubstituteCompatibleAgent(t *testing.T) {
	reg, _, c := newFixture(t)
	registerPair(t, reg, "email_extractor", []string{"extract_emails"}, []string{"extraction"})
	registerPair(t, reg, "url_extractor", []string{"extract_urls"}, []string{"extraction"})

	decision := c.OnStepFailure(context.Background(), "email_extractor",
		assert.AnError)
	assert.Equal(t, executor.ActionSubstitute, decision.Action)
	assert.Equal(t, "url_extractor", decision.SubstituteAgent)
	assert.Equal(t, "substitute", decision.Entry.Action)
}

func TestNoSubstituteRecords(t *testing.T) {
	reg, _, c := newFixture(t)
	registerPair(t, reg, "email_extractor", []string{"extract_emails"}, []string{"extraction"})

	decision := c.OnStepFailure(context.Background(), "email_extractor", assert.AnError)
	assert.Equal(t, executor.ActionRecord, decision.Action)
	assert.Equal(t, "record", decision.Entry.Action)
}

func TestBudgetExhaustionAborts(t *testing.T) {
	reg, l, _ := newFixture(t)
	registerPair(t, reg, "email_extractor", []string{"extract_emails"}, nil)
	c := New(reg, oracle.NewTemplateOracle(), l, 2)

	for i := 0; i < 2; i++ {
		decision := c.OnStepFailure(context.Background(), "email_extractor", assert.AnError)
		assert.Equal(t, executor.ActionRecord, decision.Action)
	}

	decision := c.OnStepFailure(context.Background(), "email_extractor", assert.AnError)
	assert.Equal(t, executor.ActionAbort, decision.Action)
	assert.ErrorIs(t, decision.Err, ErrBudgetExceeded)
	assert.Empty(t, decision.Entry.Step)
	assert.Equal(t, 2, c.Used())
}

func TestConcurrentFailuresRespectBudget(t *testing.T) {
	reg, l, _ := newFixture(t)
	c := New(reg, oracle.NewTemplateOracle(), l, 3)

	const callers = 8
	decisions := make([]executor.Decision, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i] = c.OnStepFailure(context.Background(), "ghost", assert.AnError)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, c.Used())
	aborts := 0
	for _, d := range decisions {
		if d.Action == executor.ActionAbort {
			aborts++
			assert.ErrorIs(t, d.Err, ErrBudgetExceeded)
		}
	}
	assert.Equal(t, callers-3, aborts)
}

func TestSchemasCompatible(t *testing.T) {
	tests := []struct {
		name      string
		required  map[string]string
		candidate map[string]string
		want      bool
	}{
		{"exact match", map[string]string{"text": "string"}, map[string]string{"text": "string"}, true},
		{"candidate superset", map[string]string{"text": "string"}, map[string]string{"text": "string", "extra": "int"}, true},
		{"missing key", map[string]string{"text": "string"}, map[string]string{"data": "string"}, false},
		{"type mismatch", map[string]string{"text": "string"}, map[string]string{"text": "int"}, false},
		{"any on required", map[string]string{"text": "any"}, map[string]string{"text": "int"}, true},
		{"any on candidate", map[string]string{"text": "string"}, map[string]string{"text": "any"}, true},
		{"empty required", nil, map[string]string{"text": "string"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SchemasCompatible(tt.required, tt.candidate))
		})
	}
}
