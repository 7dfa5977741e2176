package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agenthands/philograph/internal/core/model"
)

// MemoryRepository keeps the graph in process memory. It is safe for concurrent use.
type MemoryRepository struct {
	mu            sync.RWMutex
	entities      map[string]model.Entity
	idByName      map[string]string
	relationships []model.Relationship
	relIndex      map[model.TripleKey]int
	now           func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entities: make(map[string]model.Entity),
		idByName: make(map[string]string),
		relIndex: make(map[model.TripleKey]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, entity model.Entity) (model.Entity, error) {
	if entity.Name == "" {
		return model.Entity{}, errors.New("entity name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(entity), nil
}

func (r *MemoryRepository) findOrCreateLocked(entity model.Entity) model.Entity {
	if id, ok := r.idByName[entity.Name]; ok {
		return r.entities[id]
	}
	stored := model.Entity{
		ID:               uuid.New().String(),
		Name:             entity.Name,
		EntityType:       model.ParseEntityType(string(entity.EntityType)),
		SourceDocumentID: entity.SourceDocumentID,
		Confidence:       entity.Confidence,
		CreatedAt:        r.now(),
	}
	r.entities[stored.ID] = stored
	r.idByName[stored.Name] = stored.ID
	return stored
}

func (r *MemoryRepository) GetByName(_ context.Context, name string) ([]model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.idByName[name]; ok {
		return []model.Entity{r.entities[id]}, nil
	}
	return []model.Entity{}, nil
}

func (r *MemoryRepository) FindOrCreateEntitiesByName(_ context.Context, entities []model.Entity) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]string, len(entities))
	for _, e := range entities {
		if e.Name == "" {
			continue
		}
		ids[e.Name] = r.findOrCreateLocked(e).ID
	}
	return ids, nil
}

func (r *MemoryRepository) CreateRelationship(_ context.Context, subjectID, relation, objectID string, properties map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[subjectID]; !ok {
		return false, errors.Wrapf(ErrNotFound, "subject %s", subjectID)
	}
	if _, ok := r.entities[objectID]; !ok {
		return false, errors.Wrapf(ErrNotFound, "object %s", objectID)
	}
	return r.mergeLocked(model.Relationship{SubjectID: subjectID, Relation: relation, ObjectID: objectID, Properties: properties}), nil
}

func (r *MemoryRepository) BatchCreateTriples(_ context.Context, relationships []model.Relationship) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	persisted := 0
	for _, rel := range relationships {
		_, okS := r.entities[rel.SubjectID]
		_, okO := r.entities[rel.ObjectID]
		if !okS || !okO {
			continue
		}
		r.mergeLocked(rel)
		persisted++
	}
	return persisted, nil
}

// mergeLocked returns true when a new edge was stored. Properties of an existing edge are overwritten key by key.
func (r *MemoryRepository) mergeLocked(rel model.Relationship) bool {
	key := model.TripleKey{Subject: rel.SubjectID, Relation: rel.Relation, Object: rel.ObjectID}
	if i, ok := r.relIndex[key]; ok {
		existing := r.relationships[i]
		for k, v := range rel.Properties {
			existing.Properties[k] = v
		}
		r.relationships[i] = existing
		return false
	}

	props := make(map[string]interface{}, len(rel.Properties))
	for k, v := range rel.Properties {
		props[k] = v
	}
	rel.ID = uuid.New().String()
	rel.Properties = props
	r.relIndex[key] = len(r.relationships)
	r.relationships = append(r.relationships, rel)
	return true
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return model.Entity{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return e, nil
}

func (r *MemoryRepository) GetRelationships(_ context.Context, id string) ([]model.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Relationship{}
	for _, rel := range r.relationships {
		if rel.SubjectID == id || rel.ObjectID == id {
			out = append(out, copyRelationship(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetNeighbors(_ context.Context, id string) ([]model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entitiesLocked(r.neighborIDsLocked(id)), nil
}

func (r *MemoryRepository) GetRelated(_ context.Context, id string) ([]model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	direct := r.neighborIDsLocked(id)
	related := make(map[string]bool)
	for n := range direct {
		for m := range r.neighborIDsLocked(n) {
			if m != id && !direct[m] {
				related[m] = true
			}
		}
	}
	return r.entitiesLocked(related), nil
}

func (r *MemoryRepository) neighborIDsLocked(id string) map[string]bool {
	ids := make(map[string]bool)
	for _, rel := range r.relationships {
		switch {
		case rel.SubjectID == id && rel.ObjectID != id:
			ids[rel.ObjectID] = true
		case rel.ObjectID == id && rel.SubjectID != id:
			ids[rel.SubjectID] = true
		}
	}
	return ids
}

func (r *MemoryRepository) entitiesLocked(ids map[string]bool) []model.Entity {
	out := make([]model.Entity, 0, len(ids))
	for id := range ids {
		out = append(out, r.entities[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryRepository) ListAll(_ context.Context, filter Filter) ([]model.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Entity{}
	for _, e := range r.entities {
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyRelationship(rel model.Relationship) model.Relationship {
	props := make(map[string]interface{}, len(rel.Properties))
	for k, v := range rel.Properties {
		props[k] = v
	}
	rel.Properties = props
	return rel
}
