package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/philograph/internal/config"
	"github.com/agenthands/philograph/internal/core/extraction"
	"github.com/agenthands/philograph/internal/logging"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Extraction.UseTagger = false
	return cfg
}

func TestNew_MostConnectedFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Analysis.MostConnected = 3
	a, err := New(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Equal(t, 3, a.Knowledge.MostConnected)
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), logging.Discard())
	require.NoError(t, err)
	defer a.Close(ctx)

	require.NotNil(t, a.Knowledge)
	require.NotNil(t, a.Validation)
	assert.Same(t, a.Validation, a.Knowledge.Validation)
	_, ok := a.Knowledge.Relations.(*extraction.RuleBasedExtractor)
	assert.True(t, ok)

	result := a.Knowledge.ExtractKnowledgeGraph(ctx, "Socrates teaches Plato.", "doc-1", a.ExtractOptions())
	assert.True(t, result.Success(), result.Errors)
	assert.Equal(t, 1, result.RelationshipsCreated)
	// entity confidence 0.9 and triple confidence 0.7 are both below the default submit threshold
	assert.Equal(t, 3, result.ValidationsSubmitted)
}

func TestNew_LLMWithoutProviderFallsBack(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Extraction.UseLLM = true

	a, err := New(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close(ctx)

	_, ok := a.Knowledge.Relations.(*extraction.LLMAssistedExtractor)
	require.True(t, ok)

	result := a.Knowledge.ExtractKnowledgeGraph(ctx, "Socrates teaches Plato.", "doc-1", a.ExtractOptions())
	assert.True(t, result.Success(), result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "rule-based fallback")
	assert.Equal(t, 1, result.RelationshipsCreated)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.MinConsensus = 0.5

	_, err := New(context.Background(), cfg, logging.Discard())

	assert.Error(t, err)
}

func TestNew_UnsupportedProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Extraction.UseLLM = true
	cfg.LLM.Provider = "watson"

	_, err := New(context.Background(), cfg, logging.Discard())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm")
}
