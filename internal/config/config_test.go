package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[extraction]
chunk_size = 2000
min_confidence = 0.75

[validation]
store = "sqlite"
sqlite_path = "/tmp/v.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Extraction.ChunkSize)
	assert.Equal(t, 0.75, cfg.Extraction.MinConfidence)
	assert.Equal(t, 80, cfg.Extraction.ContextWindow)
	assert.True(t, cfg.Extraction.EnableBatching)
	assert.Equal(t, "sqlite", cfg.Validation.Store)
	assert.Equal(t, 0.95, cfg.Validation.AutoApprove)
	assert.Equal(t, 2, cfg.Validation.MinReviews)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[extraction\nchunk_size = "))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse TOML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative chunk", func(c *Config) { c.Extraction.ChunkSize = -1 }, "chunk_size"},
		{"confidence above one", func(c *Config) { c.Extraction.MinConfidence = 1.5 }, "min_confidence"},
		{"review above approve", func(c *Config) { c.Validation.ExpertReview = 0.97 }, "thresholds"},
		{"consensus not a majority", func(c *Config) { c.Validation.MinConsensus = 0.5 }, "min_consensus"},
		{"zero reviews", func(c *Config) { c.Validation.MinReviews = 0 }, "min_reviews"},
		{"unknown store", func(c *Config) { c.Validation.Store = "redis" }, "unsupported validation store"},
		{"negative most connected", func(c *Config) { c.Analysis.MostConnected = -1 }, "most_connected"},
		{"prompt without text", func(c *Config) { c.Prompts.Relationships = "Extract {labels} triples" }, "{text}"},
		{"prompt with placeholders", func(c *Config) { c.Prompts.Relationships = "Use {labels}. TEXT: {text}" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	v := viper.New()
	v.Set("llm.provider", "openai")
	v.Set("extraction.use_llm", true)
	v.Set("extraction.chunk_size", 500)
	v.Set("validation.min_reviews", 3)

	cfg := Default()
	require.NoError(t, ApplyOverrides(cfg, v))

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.Extraction.UseLLM)
	assert.Equal(t, 500, cfg.Extraction.ChunkSize)
	assert.Equal(t, 3, cfg.Validation.MinReviews)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestApplyOverrides_FromEnv(t *testing.T) {
	t.Setenv("PHILOGRAPH_MEMGRAPH_URI", "bolt://graph:7687")
	t.Setenv("PHILOGRAPH_VALIDATION_AUTO_APPROVE", "0.9")
	t.Setenv("PHILOGRAPH_ANALYSIS_MOST_CONNECTED", "5")

	cfg := Default()
	require.NoError(t, ApplyOverrides(cfg, NewViper()))

	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.Equal(t, 0.9, cfg.Validation.AutoApprove)
	assert.Equal(t, 5, cfg.Analysis.MostConnected)
}

func TestApplyOverrides_RejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("validation.min_consensus", 0.3)

	err := ApplyOverrides(Default(), v)
	assert.Error(t, err)
}
