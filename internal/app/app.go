package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/config"
	"github.com/agenthands/philograph/internal/core"
	"github.com/agenthands/philograph/internal/core/extraction"
	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/driver"
	"github.com/agenthands/philograph/internal/llm"
	"github.com/agenthands/philograph/internal/repository"
	"github.com/agenthands/philograph/internal/validation"
)

// App holds the wired services of one process.
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Knowledge  *core.KnowledgeService
	Validation *validation.Service

	closers []func(context.Context) error
}

// New wires repositories, extractors and the validation workflow from cfg. Memgraph is used when a URI is
// configured, the in-memory repository otherwise.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	repo, err := a.repository(ctx)
	if err != nil {
		return nil, err
	}

	store, err := a.validationStore()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	thresholds := model.ValidationThresholds{
		AutoApprove:  cfg.Validation.AutoApprove,
		ExpertReview: cfg.Validation.ExpertReview,
		MinConsensus: cfg.Validation.MinConsensus,
		MinReviews:   cfg.Validation.MinReviews,
	}
	a.Validation, err = validation.NewService(store, thresholds, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var tagger extraction.Tagger = extraction.NoTagger{}
	if cfg.Extraction.UseTagger {
		tagger = extraction.NewProseTagger()
	} else {
		logger.Warn("Statistical tagger disabled, entity extraction uses the pattern table only")
	}
	entities := extraction.NewEntityExtractor(tagger, logger)
	entities.ContextWindow = cfg.Extraction.ContextWindow

	var client llm.LLMClient
	if cfg.Extraction.UseLLM {
		client, err = llm.NewClient(ctx, cfg.LLM, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
		if c, ok := client.(interface{ Close() error }); ok {
			a.closers = append(a.closers, func(context.Context) error { return c.Close() })
		}
	}
	relations := extraction.NewRelationshipExtractor(cfg.Extraction.UseLLM, client, extraction.NewLexicon(), cfg.Prompts.Relationships, logger)

	a.Knowledge = core.NewKnowledgeService(repo, entities, relations, logger)
	a.Knowledge.Validation = a.Validation
	a.Knowledge.MostConnected = cfg.Analysis.MostConnected
	return a, nil
}

func (a *App) repository(ctx context.Context) (repository.Repository, error) {
	m := a.Config.Memgraph
	if m.URI == "" {
		a.Logger.Info("No memgraph uri configured, using in-memory repository")
		return repository.NewMemoryRepository(), nil
	}
	d, err := driver.NewMemgraphDriver(ctx, m.URI, m.User, m.Password, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Close)
	if err := d.BuildIndices(ctx); err != nil {
		a.Logger.WithError(err).Warn("Failed to build indices")
	}
	return repository.NewGraphRepository(d), nil
}

func (a *App) validationStore() (validation.Store, error) {
	v := a.Config.Validation
	if v.Store != "sqlite" {
		return validation.NewMemoryStore(), nil
	}
	s, err := validation.NewSQLiteStore(v.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open validation store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })
	a.Logger.WithField("path", v.SQLitePath).Info("Using SQLite validation store")
	return s, nil
}

// ExtractOptions returns the per-call defaults taken from the extraction section.
func (a *App) ExtractOptions() core.ExtractOptions {
	e := a.Config.Extraction
	return core.ExtractOptions{
		ChunkSize:      e.ChunkSize,
		MinConfidence:  e.MinConfidence,
		EnableBatching: e.EnableBatching,
		SubmitBelow:    e.SubmitBelow,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}
