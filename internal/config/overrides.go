package config

import (
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "PHILOGRAPH"

// NewViper returns a viper instance that resolves keys such as "llm.provider" from PHILOGRAPH_LLM_PROVIDER.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (env, bound flags or explicit Set) onto cfg and re-validates it.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("server.port", &cfg.Server.Port)
	str("logging.level", &cfg.Logging.Level)
	str("logging.format", &cfg.Logging.Format)

	str("llm.provider", &cfg.LLM.Provider)
	str("llm.model", &cfg.LLM.Model)
	str("llm.api_key", &cfg.LLM.APIKey)
	str("llm.base_url", &cfg.LLM.BaseURL)

	str("memgraph.uri", &cfg.Memgraph.URI)
	str("memgraph.user", &cfg.Memgraph.User)
	str("memgraph.password", &cfg.Memgraph.Password)

	flag("extraction.use_llm", &cfg.Extraction.UseLLM)
	flag("extraction.use_tagger", &cfg.Extraction.UseTagger)
	integer("extraction.chunk_size", &cfg.Extraction.ChunkSize)
	num("extraction.min_confidence", &cfg.Extraction.MinConfidence)
	integer("extraction.context_window", &cfg.Extraction.ContextWindow)
	flag("extraction.enable_batching", &cfg.Extraction.EnableBatching)
	num("extraction.submit_below", &cfg.Extraction.SubmitBelow)

	num("validation.auto_approve", &cfg.Validation.AutoApprove)
	num("validation.expert_review", &cfg.Validation.ExpertReview)
	num("validation.min_consensus", &cfg.Validation.MinConsensus)
	integer("validation.min_reviews", &cfg.Validation.MinReviews)
	str("validation.store", &cfg.Validation.Store)
	str("validation.sqlite_path", &cfg.Validation.SQLitePath)

	integer("analysis.most_connected", &cfg.Analysis.MostConnected)

	return cfg.Validate()
}
