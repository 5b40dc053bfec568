package loader

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfabric/internal/config"
	"agentfabric/internal/oracle"
	"agentfabric/internal/registry"
)

// newTestSetup registers a generated component pair and returns the loader
// over the backing registry.
func newTestSetup(t *testing.T) (*registry.Registry, *Loader) {
	t.Helper()
	reg, err := registry.Open(config.PathsFor(t.TempDir()))
	require.NoError(t, err)
	return reg, New(reg)
}

func registerGenerated(t *testing.T, reg *registry.Registry, agentName string, tools []string) {
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
	_, err = reg.RegisterAgent(registry.AgentSpec{Name: agentName, Source: source, UsesTools: tools})
	require.NoError(t, err)
}

func TestLoadToolAndInvoke(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "email_extractor", []string{"extract_emails"})

	fn, err := l.Tool("extract_emails")
	require.NoError(t, err)

	got := fn("Reach foo@bar.com today")
	assert.Equal(t, []string{"foo@bar.com"}, got)
}

func TestLoadAgentRunsWithItsTools(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "email_extractor", []string{"extract_emails"})

	fn, err := l.Agent("email_extractor")
	require.NoError(t, err)

	state := map[string]interface{}{
		"request":        "Extract emails from: Contact us at foo@bar.com or baz@qux.io",
		"results":        map[string]interface{}{},
		"errors":         []interface{}{},
		"execution_path": []interface{}{},
	}
	state = fn(state)

	results := state["results"].(map[string]interface{})
	envelope := results["email_extractor"].(map[string]interface{})
	assert.Equal(t, "success", envelope["status"])

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, []string{"foo@bar.com", "baz@qux.io"}, data["emails"])
	assert.Equal(t, 2, data["count"])
	assert.Equal(t, map[string]int{"bar.com": 1, "qux.io": 1}, data["domains"])

	path := state["execution_path"].([]interface{})
	assert.Equal(t, []interface{}{"email_extractor"}, path)
}

func TestLoadCachesCallables(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "word_counter", []string{"count_words"})

	_, err := l.Agent("word_counter")
	require.NoError(t, err)
	_, err = l.Tool("count_words")
	require.NoError(t, err)

	agents, tools := l.cachedCounts()
	assert.Equal(t, 1, agents)
	assert.Equal(t, 1, tools)
}

func TestLoadFailureOnMissingArtifact(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "word_counter", []string{"count_words"})

	rec, ok := reg.GetTool("count_words")
	require.True(t, ok)
	require.NoError(t, os.Remove(rec.Location))

	_, err := l.Tool("count_words")
	assert.ErrorIs(t, err, ErrLoadFailure)

	// The agent embeds the tool, so it fails the same way.
	_, err = l.Agent("word_counter")
	assert.ErrorIs(t, err, ErrLoadFailure)
}

func TestLoadFailureOnUnknownComponent(t *testing.T) {
	_, l := newTestSetup(t)

	_, err := l.Tool("nope")
	assert.ErrorIs(t, err, ErrLoadFailure)
	_, err = l.Agent("nope")
	assert.ErrorIs(t, err, ErrLoadFailure)
}

func TestInvalidateDropsConsumers(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "word_counter", []string{"count_words"})

	_, err := l.Agent("word_counter")
	require.NoError(t, err)
	_, err = l.Tool("count_words")
	require.NoError(t, err)

	l.Invalidate("count_words")

	agents, tools := l.cachedCounts()
	assert.Equal(t, 0, agents)
	assert.Equal(t, 0, tools)
}

func TestWatchInvalidatesOnArtifactChange(t *testing.T) {
	reg, l := newTestSetup(t)
	registerGenerated(t, reg, "word_counter", []string{"count_words"})

	_, err := l.Tool("count_words")
	require.NoError(t, err)

	paths := reg.Paths()
	require.NoError(t, l.Watch(paths.AgentArtifactsDir(), paths.ToolArtifactsDir()))
	t.Cleanup(func() { l.Close() })

	rec, ok := reg.GetTool("count_words")
	require.True(t, ok)
	require.NoError(t, os.WriteFile(rec.Location, []byte("package main\n"), 0o644))

	require.Eventually(t, func() bool {
		_, tools := l.cachedCounts()
		return tools == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestValidateImports(t *testing.T) {
	assert.NoError(t, validateImports("package main\n\nimport \"strings\"\n"))
	assert.NoError(t, validateImports("package main\n\nimport (\n\t\"fmt\"\n\t\"regexp\"\n)\n"))
	assert.Error(t, validateImports("package main\n\nimport \"os\"\n"))
	assert.Error(t, validateImports("package main\n\nimport (\n\t\"fmt\"\n\t\"os/exec\"\n)\n"))
	assert.Error(t, validateImports("package main\n\nimport x \"net/http\"\n"))
}
