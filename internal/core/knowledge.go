package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/core/community"
	"github.com/agenthands/philograph/internal/core/dedupe"
	"github.com/agenthands/philograph/internal/core/extraction"
	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/metrics"
	"github.com/agenthands/philograph/internal/repository"
	"github.com/agenthands/philograph/internal/validation"
)

// ExtractOptions tune a single ExtractKnowledgeGraph call.
type ExtractOptions struct {
	// ChunkSize splits the text into sequential windows of at most this many bytes. Zero disables chunking.
	ChunkSize     int
	MinConfidence float64
	// EnableBatching resolves all entities and persists all triples with one repository call each.
	EnableBatching bool
	// KnownEntities restricts triples to these names when non-nil.
	KnownEntities []string
	// SubmitBelow sends entities and validated triples with lower confidence to the validation service.
	SubmitBelow float64
}

func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		MinConfidence:  dedupe.DefaultMinConfidence,
		EnableBatching: true,
	}
}

// KnowledgeService turns documents into persisted entities and relationships and answers read queries over them.
type KnowledgeService struct {
	Repo       repository.Repository
	Entities   *extraction.EntityExtractor
	Relations  extraction.RelationshipExtractor
	Validation *validation.Service
	Community  community.Detector
	Logger     *logrus.Logger
	// MostConnected caps the ranked list returned by network analysis. Zero lists every retained entity.
	MostConnected int
}

func NewKnowledgeService(repo repository.Repository, entities *extraction.EntityExtractor, relations extraction.RelationshipExtractor, logger *logrus.Logger) *KnowledgeService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if entities == nil {
		entities = extraction.NewEntityExtractor(nil, logger)
	}
	if relations == nil {
		relations = extraction.NewRuleBasedExtractor(nil)
	}
	return &KnowledgeService{
		Repo:      repo,
		Entities:  entities,
		Relations: relations,
		Community: community.NewLabelPropagationDetector(),
		Logger:    logger,
	}
}

// ExtractKnowledgeGraph runs extraction, validation and persistence for one document. It never fails: every
// problem is recorded in the result, which callers must inspect even when counters are non-zero.
func (s *KnowledgeService) ExtractKnowledgeGraph(ctx context.Context, text, documentID string, opts ExtractOptions) *model.ExtractionResult {
	start := time.Now()
	result := &model.ExtractionResult{
		DocumentID: documentID,
		Errors:     []string{},
		Warnings:   []string{},
	}
	log := s.Logger.WithField("document_id", documentID)

	defer func() {
		result.ProcessingTime = time.Since(start)
		status := "success"
		if !result.Success() {
			status = "partial"
		}
		metrics.ExtractionDuration.WithLabelValues(status).Observe(result.ProcessingTime.Seconds())
		log.WithFields(logrus.Fields{
			"entities_found":        result.EntitiesFound,
			"entities_created":      result.EntitiesCreated,
			"triples_extracted":     result.TriplesExtracted,
			"triples_validated":     result.TriplesValidated,
			"relationships_created": result.RelationshipsCreated,
			"errors":                len(result.Errors),
			"duration":              result.ProcessingTime,
		}).Info("Knowledge extraction finished")
	}()

	if strings.TrimSpace(text) == "" {
		result.Warnings = append(result.Warnings, "empty document, nothing to extract")
		return result
	}

	chunks := splitChunks(text, opts.ChunkSize)
	entities, raw := s.extractChunks(ctx, chunks, documentID, opts.KnownEntities, result, log)

	result.EntitiesFound = len(entities)
	result.TriplesExtracted = len(raw)
	for _, e := range entities {
		metrics.EntitiesExtracted.WithLabelValues(string(e.EntityType)).Inc()
	}
	for _, t := range raw {
		metrics.TriplesExtracted.WithLabelValues(t.Relation, t.Source).Inc()
	}

	var validated []model.Triple
	if err := guard("triple validation", func() error {
		validated = dedupe.Validate(raw, opts.MinConfidence)
		return nil
	}); err != nil {
		result.Errors = append(result.Errors, err.Error())
		log.WithError(err).Error("Triple validation failed")
		return result
	}
	result.TriplesValidated = len(validated)

	if s.Repo == nil {
		result.Errors = append(result.Errors, "no repository configured")
		return result
	}
	if err := guard("persistence", func() error {
		if opts.EnableBatching {
			s.persistBatched(ctx, documentID, entities, validated, result, log)
		} else {
			s.persistEach(ctx, documentID, entities, validated, result, log)
		}
		return nil
	}); err != nil {
		result.Errors = append(result.Errors, err.Error())
		log.WithError(err).Error("Persistence aborted")
	}

	if s.Validation != nil && opts.SubmitBelow > 0 {
		s.submitForReview(ctx, entities, validated, opts.SubmitBelow, result, log)
	}
	return result
}

// extractChunks processes chunks strictly in order so that a failing chunk is reported without disturbing the rest.
func (s *KnowledgeService) extractChunks(ctx context.Context, chunks []chunk, documentID string, known []string, result *model.ExtractionResult, log *logrus.Entry) ([]model.Entity, []model.Triple) {
	batches := make([][]model.Entity, 0, len(chunks))
	var raw []model.Triple

	for i, c := range chunks {
		err := guard(fmt.Sprintf("entity extraction (chunk %d)", i), func() error {
			found := s.Entities.ExtractEntities(c.Text, documentID)
			batches = append(batches, shiftMentions(found, c.Offset))
			return nil
		})
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			log.WithError(err).WithField("chunk", i).Warn("Entity extraction failed for chunk")
		}

		err = guard(fmt.Sprintf("relationship extraction (chunk %d)", i), func() error {
			triples, err := s.Relations.ExtractRelationships(ctx, c.Text, known)
			raw = append(raw, triples...)
			return err
		})
		var fallback *extraction.FallbackError
		switch {
		case err == nil:
		case errors.As(err, &fallback):
			result.Warnings = append(result.Warnings, fallback.Error())
		default:
			result.Warnings = append(result.Warnings, err.Error())
			log.WithError(err).WithField("chunk", i).Warn("Relationship extraction failed for chunk")
		}
	}

	if len(batches) == 1 {
		return batches[0], raw
	}
	return extraction.MergeEntities(documentID, batches...), raw
}

func shiftMentions(entities []model.Entity, offset int) []model.Entity {
	if offset == 0 {
		return entities
	}
	for i := range entities {
		mentions := make([]model.Mention, len(entities[i].Mentions))
		for j, m := range entities[i].Mentions {
			m.StartPosition += offset
			m.EndPosition += offset
			mentions[j] = m
		}
		entities[i].Mentions = mentions
	}
	return entities
}

// referencedEntities returns the extracted entities followed by a CONCEPT entity for every triple endpoint that
// extraction did not report.
func referencedEntities(documentID string, entities []model.Entity, triples []model.Triple) []model.Entity {
	out := append([]model.Entity(nil), entities...)
	index := make(map[string]int, len(entities))
	for i, e := range entities {
		index[e.Name] = i
	}
	for _, t := range triples {
		for _, name := range []string{t.Subject, t.Object} {
			if _, ok := index[name]; ok {
				continue
			}
			index[name] = len(out)
			out = append(out, model.Entity{
				Name:             name,
				EntityType:       model.EntityConcept,
				SourceDocumentID: documentID,
				Confidence:       t.Confidence,
			})
		}
	}
	return out
}

func relationshipProperties(t model.Triple, documentID string) map[string]interface{} {
	return map[string]interface{}{
		"confidence":  t.Confidence,
		"evidence":    t.Evidence,
		"source":      t.Source,
		"document_id": documentID,
	}
}

func (s *KnowledgeService) persistBatched(ctx context.Context, documentID string, entities []model.Entity, triples []model.Triple, result *model.ExtractionResult, log *logrus.Entry) {
	refs := referencedEntities(documentID, entities, triples)
	if len(refs) == 0 {
		return
	}

	ids, err := s.Repo.FindOrCreateEntitiesByName(ctx, refs)
	if err != nil {
		s.recordPersistenceError(result, log, "find_or_create_entities", err)
		log.Warn("Batch entity resolution failed, persisting one by one")
		s.persistEach(ctx, documentID, entities, triples, result, log)
		return
	}
	result.EntitiesCreated = len(ids)

	rels := make([]model.Relationship, 0, len(triples))
	for _, t := range triples {
		subjectID, okS := ids[t.Subject]
		objectID, okO := ids[t.Object]
		if !okS || !okO {
			result.Errors = append(result.Errors, fmt.Sprintf("unresolved entity for triple (%s, %s, %s)", t.Subject, t.Relation, t.Object))
			continue
		}
		rels = append(rels, model.Relationship{
			SubjectID:  subjectID,
			Relation:   t.Relation,
			ObjectID:   objectID,
			Properties: relationshipProperties(t, documentID),
		})
	}
	if len(rels) == 0 {
		return
	}

	persisted, err := s.Repo.BatchCreateTriples(ctx, rels)
	if err != nil {
		s.recordPersistenceError(result, log, "batch_create_triples", err)
		log.Warn("Batch triple persistence failed, persisting one by one")
		for _, rel := range rels {
			if _, err := s.Repo.CreateRelationship(ctx, rel.SubjectID, rel.Relation, rel.ObjectID, rel.Properties); err != nil {
				s.recordPersistenceError(result, log, "create_relationship", err)
				continue
			}
			result.RelationshipsCreated++
		}
		return
	}
	result.RelationshipsCreated = persisted
}

func (s *KnowledgeService) persistEach(ctx context.Context, documentID string, entities []model.Entity, triples []model.Triple, result *model.ExtractionResult, log *logrus.Entry) {
	ids := make(map[string]string)
	result.EntitiesCreated = 0
	for _, e := range referencedEntities(documentID, entities, triples) {
		id, err := s.resolveEntity(ctx, e)
		if err != nil {
			s.recordPersistenceError(result, log, "resolve_entity", fmt.Errorf("entity %q: %w", e.Name, err))
			continue
		}
		ids[e.Name] = id
		result.EntitiesCreated++
	}

	for _, t := range triples {
		subjectID, okS := ids[t.Subject]
		objectID, okO := ids[t.Object]
		if !okS || !okO {
			result.Errors = append(result.Errors, fmt.Sprintf("unresolved entity for triple (%s, %s, %s)", t.Subject, t.Relation, t.Object))
			continue
		}
		if _, err := s.Repo.CreateRelationship(ctx, subjectID, t.Relation, objectID, relationshipProperties(t, documentID)); err != nil {
			s.recordPersistenceError(result, log, "create_relationship", err)
			continue
		}
		result.RelationshipsCreated++
	}
}

func (s *KnowledgeService) resolveEntity(ctx context.Context, e model.Entity) (string, error) {
	existing, err := s.Repo.GetByName(ctx, e.Name)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}
	created, err := s.Repo.Create(ctx, e)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *KnowledgeService) recordPersistenceError(result *model.ExtractionResult, log *logrus.Entry, op string, err error) {
	metrics.PersistenceErrors.WithLabelValues(op).Inc()
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", op, err))
	log.WithError(err).WithField("operation", op).Warn("Persistence error")
}

func (s *KnowledgeService) submitForReview(ctx context.Context, entities []model.Entity, triples []model.Triple, below float64, result *model.ExtractionResult, log *logrus.Entry) {
	submit := func(itemType string, data interface{}, confidence float64) {
		if _, err := s.Validation.SubmitForValidation(ctx, itemType, data, confidence, ""); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("submit %s for validation: %v", itemType, err))
			log.WithError(err).Warn("Validation submission failed")
			return
		}
		result.ValidationsSubmitted++
	}

	for _, e := range entities {
		if e.Confidence < below {
			submit(model.ItemEntity, entityPayload(e), e.Confidence)
		}
	}
	for _, t := range triples {
		if t.Confidence < below {
			submit(model.ItemRelationship, t, t.Confidence)
		}
	}
}

func entityPayload(e model.Entity) map[string]interface{} {
	return map[string]interface{}{
		"name":               e.Name,
		"entity_type":        e.EntityType,
		"source_document_id": e.SourceDocumentID,
		"confidence":         e.Confidence,
		"mention_count":      e.MentionCount(),
	}
}

// GetEntityRelationships returns the entity with its direct relationships, neighbors and two-hop related entities.
func (s *KnowledgeService) GetEntityRelationships(ctx context.Context, entityID string) (model.EntityRelationships, error) {
	entity, err := s.Repo.GetByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.EntityRelationships{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
		}
		return model.EntityRelationships{}, fmt.Errorf("failed to load entity %s: %w", entityID, err)
	}

	rels, err := s.Repo.GetRelationships(ctx, entityID)
	if err != nil {
		return model.EntityRelationships{}, fmt.Errorf("failed to load relationships of %s: %w", entityID, err)
	}
	neighbors, err := s.Repo.GetNeighbors(ctx, entityID)
	if err != nil {
		return model.EntityRelationships{}, fmt.Errorf("failed to load neighbors of %s: %w", entityID, err)
	}
	related, err := s.Repo.GetRelated(ctx, entityID)
	if err != nil {
		return model.EntityRelationships{}, fmt.Errorf("failed to load related entities of %s: %w", entityID, err)
	}

	return model.EntityRelationships{
		Entity:        entity,
		Relationships: nonNil(rels),
		Neighbors:     nonNil(neighbors),
		Related:       nonNil(related),
	}, nil
}

// NetworkQuery selects the entities a network analysis covers. MostConnected of zero lists every retained entity.
type NetworkQuery struct {
	EntityTypes      []model.EntityType
	MinRelationships int
	MostConnected    int
}

// AnalyzePhilosophicalNetwork summarizes entities of the given types (all when empty) that take part in at least
// minRelationships relationships, ranking at most s.MostConnected of them.
func (s *KnowledgeService) AnalyzePhilosophicalNetwork(ctx context.Context, entityTypes []model.EntityType, minRelationships int) (model.NetworkAnalysis, error) {
	return s.AnalyzeNetwork(ctx, NetworkQuery{
		EntityTypes:      entityTypes,
		MinRelationships: minRelationships,
		MostConnected:    s.MostConnected,
	})
}

func (s *KnowledgeService) AnalyzeNetwork(ctx context.Context, q NetworkQuery) (model.NetworkAnalysis, error) {
	minRelationships := q.MinRelationships
	if minRelationships < 0 {
		return model.NetworkAnalysis{}, fmt.Errorf("%w: min_relationships must be >= 0, got %d", ErrInvalidRequest, minRelationships)
	}
	if q.MostConnected < 0 {
		return model.NetworkAnalysis{}, fmt.Errorf("%w: most_connected must be >= 0, got %d", ErrInvalidRequest, q.MostConnected)
	}

	entities, err := s.Repo.ListAll(ctx, repository.Filter{EntityTypes: q.EntityTypes})
	if err != nil {
		return model.NetworkAnalysis{}, fmt.Errorf("failed to list entities: %w", err)
	}

	var (
		retained    []model.Entity
		connections []model.EntityConnections
		seen        = make(map[string]bool)
		edges       []model.Relationship
		sum         int
	)
	analysis := model.NetworkAnalysis{
		MostConnected:          []model.EntityConnections{},
		EntityTypeDistribution: map[model.EntityType]int{},
		Communities:            [][]model.Entity{},
	}

	for _, e := range entities {
		rels, err := s.Repo.GetRelationships(ctx, e.ID)
		if err != nil {
			return model.NetworkAnalysis{}, fmt.Errorf("failed to count relationships of %s: %w", e.ID, err)
		}
		if len(rels) < minRelationships {
			continue
		}
		retained = append(retained, e)
		connections = append(connections, model.EntityConnections{Entity: e, RelationshipCount: len(rels)})
		analysis.EntityTypeDistribution[e.EntityType]++
		sum += len(rels)
		for _, r := range rels {
			key := r.ID
			if key == "" {
				key = r.SubjectID + "\x00" + r.Relation + "\x00" + r.ObjectID
			}
			if !seen[key] {
				seen[key] = true
				edges = append(edges, r)
			}
		}
	}

	analysis.TotalEntities = len(retained)
	analysis.TotalRelationships = len(edges)
	if len(retained) > 0 {
		analysis.AverageRelationshipsPerEntity = float64(sum) / float64(len(retained))
	}

	sort.Slice(connections, func(i, j int) bool {
		if connections[i].RelationshipCount != connections[j].RelationshipCount {
			return connections[i].RelationshipCount > connections[j].RelationshipCount
		}
		return connections[i].Entity.ID < connections[j].Entity.ID
	})
	if q.MostConnected > 0 && len(connections) > q.MostConnected {
		connections = connections[:q.MostConnected]
	}
	if connections != nil {
		analysis.MostConnected = connections
	}

	if s.Community != nil && len(retained) > 0 {
		analysis.Communities = s.Community.Detect(retained, edges)
	}
	return analysis, nil
}

// guard runs fn and converts a panic into an error labelled with phase.
func guard(phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", phase, r)
		}
	}()
	return fn()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
