package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/philograph/internal/config"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, config.LLMConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "OpenAI", APIKey: "k", Model: "gpt-4o"}, nil)
	require.NoError(t, err)
	openaiClient, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", openaiClient.model)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "claude", APIKey: "k"}, nil)
	require.NoError(t, err)
	claudeClient, ok := c.(*ClaudeClient)
	require.True(t, ok)
	assert.NotEmpty(t, claudeClient.model)

	c, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "llama3"}, nil)
	require.NoError(t, err)
	_, ok = c.(*OpenAIClient)
	assert.True(t, ok)

	_, err = NewClient(ctx, config.LLMConfig{Provider: "watson"}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}
