package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pkg/errors"

	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/driver"
)

// GraphRepository persists the knowledge graph in Memgraph (or Neo4j) through a GraphDriver.
type GraphRepository struct {
	Driver driver.GraphDriver
	NewID  func() string
}

func NewGraphRepository(d driver.GraphDriver) *GraphRepository {
	return &GraphRepository{Driver: d, NewID: uuid.NewString}
}

func (r *GraphRepository) entityParams(e model.Entity) map[string]interface{} {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return map[string]interface{}{
		"id":                 r.NewID(),
		"name":               e.Name,
		"entity_type":        string(model.ParseEntityType(string(e.EntityType))),
		"source_document_id": e.SourceDocumentID,
		"confidence":         e.Confidence,
		"mention_count":      int64(e.MentionCount()),
		"created_at":         createdAt.Format(time.RFC3339),
	}
}

func (r *GraphRepository) Create(ctx context.Context, entity model.Entity) (model.Entity, error) {
	if entity.Name == "" {
		return model.Entity{}, errors.New("entity name must not be empty")
	}
	res, err := r.Driver.ExecuteQuery(ctx, driver.CreateEntityQuery, r.entityParams(entity))
	if err != nil {
		return model.Entity{}, errors.Wrapf(err, "create entity %q", entity.Name)
	}
	entities := recordsToEntities(res.Records)
	if len(entities) == 0 {
		return model.Entity{}, errors.Errorf("create entity %q returned no record", entity.Name)
	}
	return entities[0], nil
}

func (r *GraphRepository) GetByName(ctx context.Context, name string) ([]model.Entity, error) {
	res, err := r.Driver.ExecuteQuery(ctx, driver.GetEntitiesByNameQuery, map[string]interface{}{"name": name})
	if err != nil {
		return nil, errors.Wrapf(err, "get entity by name %q", name)
	}
	return recordsToEntities(res.Records), nil
}

func (r *GraphRepository) FindOrCreateEntitiesByName(ctx context.Context, entities []model.Entity) (map[string]string, error) {
	ids := make(map[string]string, len(entities))
	if len(entities) == 0 {
		return ids, nil
	}

	rows := make([]interface{}, 0, len(entities))
	for _, e := range entities {
		if e.Name == "" {
			continue
		}
		rows = append(rows, r.entityParams(e))
	}
	res, err := r.Driver.ExecuteQuery(ctx, driver.FindOrCreateEntitiesQuery, map[string]interface{}{"entities": rows})
	if err != nil {
		return nil, errors.Wrap(err, "find or create entities")
	}
	for _, rec := range res.Records {
		ids[recordString(rec, "name")] = recordString(rec, "id")
	}
	return ids, nil
}

func (r *GraphRepository) CreateRelationship(ctx context.Context, subjectID, relation, objectID string, properties map[string]interface{}) (bool, error) {
	id := r.NewID()
	if properties == nil {
		properties = map[string]interface{}{}
	}
	res, err := r.Driver.ExecuteQuery(ctx, driver.CreateRelationshipQuery, map[string]interface{}{
		"id":         id,
		"subject_id": subjectID,
		"relation":   relation,
		"object_id":  objectID,
		"properties": properties,
	})
	if err != nil {
		return false, errors.Wrapf(err, "create relationship %s-[%s]->%s", subjectID, relation, objectID)
	}
	if len(res.Records) == 0 {
		return false, errors.Wrapf(ErrNotFound, "relationship endpoints %s, %s", subjectID, objectID)
	}
	return recordString(res.Records[0], "id") == id, nil
}

func (r *GraphRepository) BatchCreateTriples(ctx context.Context, relationships []model.Relationship) (int, error) {
	if len(relationships) == 0 {
		return 0, nil
	}
	rows := make([]interface{}, len(relationships))
	for i, rel := range relationships {
		props := rel.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		rows[i] = map[string]interface{}{
			"id":         r.NewID(),
			"subject_id": rel.SubjectID,
			"relation":   rel.Relation,
			"object_id":  rel.ObjectID,
			"properties": props,
		}
	}

	res, err := r.Driver.ExecuteQuery(ctx, driver.BatchCreateRelationshipsQuery, map[string]interface{}{"relationships": rows})
	if err != nil {
		return 0, errors.Wrap(err, "batch create relationships")
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return int(recordInt(res.Records[0], "persisted")), nil
}

func (r *GraphRepository) GetByID(ctx context.Context, id string) (model.Entity, error) {
	res, err := r.Driver.ExecuteQuery(ctx, driver.GetEntityByIDQuery, map[string]interface{}{"id": id})
	if err != nil {
		return model.Entity{}, errors.Wrapf(err, "get entity %s", id)
	}
	entities := recordsToEntities(res.Records)
	if len(entities) == 0 {
		return model.Entity{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return entities[0], nil
}

func (r *GraphRepository) GetRelationships(ctx context.Context, id string) ([]model.Relationship, error) {
	res, err := r.Driver.ExecuteQuery(ctx, driver.GetRelationshipsQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, errors.Wrapf(err, "get relationships of %s", id)
	}
	out := make([]model.Relationship, 0, len(res.Records))
	for _, rec := range res.Records {
		rel := model.Relationship{
			ID:        recordString(rec, "id"),
			SubjectID: recordString(rec, "subject_id"),
			Relation:  recordString(rec, "relation"),
			ObjectID:  recordString(rec, "object_id"),
		}
		if props, ok := rec.Get("properties"); ok {
			if m, ok := props.(map[string]interface{}); ok {
				rel.Properties = make(map[string]interface{}, len(m))
				for k, v := range m {
					if k == "id" || k == "relation" {
						continue
					}
					rel.Properties[k] = v
				}
			}
		}
		out = append(out, rel)
	}
	return out, nil
}

func (r *GraphRepository) GetNeighbors(ctx context.Context, id string) ([]model.Entity, error) {
	res, err := r.Driver.ExecuteQuery(ctx, driver.GetNeighborsQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, errors.Wrapf(err, "get neighbors of %s", id)
	}
	return recordsToEntities(res.Records), nil
}

func (r *GraphRepository) GetRelated(ctx context.Context, id string) ([]model.Entity, error) {
	res, err := r.Driver.ExecuteQuery(ctx, driver.GetRelatedQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, errors.Wrapf(err, "get related of %s", id)
	}
	return recordsToEntities(res.Records), nil
}

func (r *GraphRepository) ListAll(ctx context.Context, filter Filter) ([]model.Entity, error) {
	types := make([]interface{}, len(filter.EntityTypes))
	for i, t := range filter.EntityTypes {
		types[i] = string(t)
	}
	res, err := r.Driver.ExecuteQuery(ctx, driver.ListEntitiesQuery, map[string]interface{}{"entity_types": types})
	if err != nil {
		return nil, errors.Wrap(err, "list entities")
	}
	return recordsToEntities(res.Records), nil
}

func recordsToEntities(records []*neo4j.Record) []model.Entity {
	out := make([]model.Entity, 0, len(records))
	for _, rec := range records {
		e := model.Entity{
			ID:               recordString(rec, "id"),
			Name:             recordString(rec, "name"),
			EntityType:       model.ParseEntityType(recordString(rec, "entity_type")),
			SourceDocumentID: recordString(rec, "source_document_id"),
			Confidence:       recordFloat(rec, "confidence"),
		}
		if ts := recordString(rec, "created_at"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				e.CreatedAt = t
			}
		}
		out = append(out, e)
	}
	return out
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func recordInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
