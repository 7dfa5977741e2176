package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agenthands/philograph/internal/core/model"
)

var ErrNotFound = errors.New("entity not found")

// Filter narrows ListAll. Zero values match everything.
type Filter struct {
	EntityTypes []model.EntityType
}

// Repository is the persistence boundary of the knowledge graph. Implementations must make entity creation
// idempotent by exact name so that concurrent writers for one name never produce duplicates.
type Repository interface {
	// Create stores an entity, returning the already stored record if the name exists.
	Create(ctx context.Context, entity model.Entity) (model.Entity, error)
	GetByName(ctx context.Context, name string) ([]model.Entity, error)
	// FindOrCreateEntitiesByName resolves every entity name to a stored id in one call.
	FindOrCreateEntitiesByName(ctx context.Context, entities []model.Entity) (map[string]string, error)
	// CreateRelationship merges an edge and reports whether it was newly created.
	CreateRelationship(ctx context.Context, subjectID, relation, objectID string, properties map[string]interface{}) (bool, error)
	// BatchCreateTriples merges all relationships whose endpoints exist and returns how many were persisted.
	BatchCreateTriples(ctx context.Context, relationships []model.Relationship) (int, error)
	GetByID(ctx context.Context, id string) (model.Entity, error)
	GetRelationships(ctx context.Context, id string) ([]model.Relationship, error)
	GetNeighbors(ctx context.Context, id string) ([]model.Entity, error)
	// GetRelated returns entities two hops away that are not direct neighbors.
	GetRelated(ctx context.Context, id string) ([]model.Entity, error)
	ListAll(ctx context.Context, filter Filter) ([]model.Entity, error)
}

func matchesFilter(e model.Entity, f Filter) bool {
	if len(f.EntityTypes) == 0 {
		return true
	}
	for _, t := range f.EntityTypes {
		if e.EntityType == t {
			return true
		}
	}
	return false
}
