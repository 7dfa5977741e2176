package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or text
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ExtractionConfig struct {
	UseLLM         bool    `toml:"use_llm"`
	UseTagger      bool    `toml:"use_tagger"`
	ChunkSize      int     `toml:"chunk_size"`
	MinConfidence  float64 `toml:"min_confidence"`
	ContextWindow  int     `toml:"context_window"`
	EnableBatching bool    `toml:"enable_batching"`
	// SubmitBelow sends extracted items with lower confidence to expert validation. Zero disables submission.
	SubmitBelow float64 `toml:"submit_below"`
}

type ValidationConfig struct {
	AutoApprove  float64 `toml:"auto_approve"`
	ExpertReview float64 `toml:"expert_review"`
	MinConsensus float64 `toml:"min_consensus"`
	MinReviews   int     `toml:"min_reviews"`
	Store        string  `toml:"store"` // memory or sqlite
	SQLitePath   string  `toml:"sqlite_path"`
}

type AnalysisConfig struct {
	// MostConnected caps the ranked entity list of network analysis. Zero means no cap.
	MostConnected int `toml:"most_connected"`
}

type Prompts struct {
	Relationships string `toml:"relationships"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	LLM        LLMConfig        `toml:"llm"`
	Memgraph   MemgraphConfig   `toml:"memgraph"`
	Extraction ExtractionConfig `toml:"extraction"`
	Validation ValidationConfig `toml:"validation"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Prompts    Prompts          `toml:"prompts"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Extraction: ExtractionConfig{
			UseTagger:      true,
			ChunkSize:      0,
			MinConfidence:  0.6,
			ContextWindow:  80,
			EnableBatching: true,
			SubmitBelow:    0.95,
		},
		Validation: ValidationConfig{
			AutoApprove:  0.95,
			ExpertReview: 0.5,
			MinConsensus: 0.6,
			MinReviews:   2,
			Store:        "memory",
			SQLitePath:   "data/validations.db",
		},
	}
}

// Load reads the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	e := c.Extraction
	if e.ChunkSize < 0 {
		return fmt.Errorf("extraction.chunk_size must be >= 0, got %d", e.ChunkSize)
	}
	if e.MinConfidence < 0 || e.MinConfidence > 1 {
		return fmt.Errorf("extraction.min_confidence must be within [0,1], got %v", e.MinConfidence)
	}
	if e.SubmitBelow < 0 || e.SubmitBelow > 1 {
		return fmt.Errorf("extraction.submit_below must be within [0,1], got %v", e.SubmitBelow)
	}
	if e.ContextWindow < 0 {
		return fmt.Errorf("extraction.context_window must be >= 0, got %d", e.ContextWindow)
	}

	if c.Analysis.MostConnected < 0 {
		return fmt.Errorf("analysis.most_connected must be >= 0, got %d", c.Analysis.MostConnected)
	}

	// kept in step with extraction.PromptText
	if p := c.Prompts.Relationships; p != "" && !strings.Contains(p, "{text}") {
		return fmt.Errorf("prompts.relationships must contain the {text} placeholder")
	}

	v := c.Validation
	if v.ExpertReview < 0 || v.AutoApprove > 1 || v.ExpertReview > v.AutoApprove {
		return fmt.Errorf("validation thresholds must satisfy 0 <= expert_review <= auto_approve <= 1, got %v / %v", v.ExpertReview, v.AutoApprove)
	}
	if v.MinConsensus <= 0.5 || v.MinConsensus > 1 {
		return fmt.Errorf("validation.min_consensus must be within (0.5,1], got %v", v.MinConsensus)
	}
	if v.MinReviews < 1 {
		return fmt.Errorf("validation.min_reviews must be >= 1, got %d", v.MinReviews)
	}
	switch v.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported validation store: %s", v.Store)
	}
	return nil
}
