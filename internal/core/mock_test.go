package core

import (
	"context"
	"errors"
	"sync"

	"github.com/agenthands/philograph/internal/core/extraction"
	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/repository"
)

var errRepoDown = errors.New("repository unavailable")

// MockRepository wraps a MemoryRepository and fails the operations named in FailOn.
type MockRepository struct {
	*repository.MemoryRepository

	mu     sync.Mutex
	FailOn map[string]bool
	Calls  []string
}

func NewMockRepository(failOn ...string) *MockRepository {
	m := &MockRepository{MemoryRepository: repository.NewMemoryRepository(), FailOn: map[string]bool{}}
	for _, op := range failOn {
		m.FailOn[op] = true
	}
	return m
}

func (m *MockRepository) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
	if m.FailOn[op] {
		return errRepoDown
	}
	return nil
}

func (m *MockRepository) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *MockRepository) Create(ctx context.Context, e model.Entity) (model.Entity, error) {
	if err := m.record("Create"); err != nil {
		return model.Entity{}, err
	}
	return m.MemoryRepository.Create(ctx, e)
}

func (m *MockRepository) GetByName(ctx context.Context, name string) ([]model.Entity, error) {
	if err := m.record("GetByName"); err != nil {
		return nil, err
	}
	return m.MemoryRepository.GetByName(ctx, name)
}

func (m *MockRepository) FindOrCreateEntitiesByName(ctx context.Context, entities []model.Entity) (map[string]string, error) {
	if err := m.record("FindOrCreateEntitiesByName"); err != nil {
		return nil, err
	}
	return m.MemoryRepository.FindOrCreateEntitiesByName(ctx, entities)
}

func (m *MockRepository) CreateRelationship(ctx context.Context, subjectID, relation, objectID string, props map[string]interface{}) (bool, error) {
	if err := m.record("CreateRelationship"); err != nil {
		return false, err
	}
	return m.MemoryRepository.CreateRelationship(ctx, subjectID, relation, objectID, props)
}

func (m *MockRepository) BatchCreateTriples(ctx context.Context, rels []model.Relationship) (int, error) {
	if err := m.record("BatchCreateTriples"); err != nil {
		return 0, err
	}
	return m.MemoryRepository.BatchCreateTriples(ctx, rels)
}

func (m *MockRepository) GetRelationships(ctx context.Context, id string) ([]model.Relationship, error) {
	if err := m.record("GetRelationships"); err != nil {
		return nil, err
	}
	return m.MemoryRepository.GetRelationships(ctx, id)
}

// panickingTagger simulates a broken statistical model.
type panickingTagger struct{}

func (panickingTagger) Tag(string) ([]extraction.Span, error) {
	panic("model weights missing")
}

// stubRelations returns a fixed result for every chunk.
type stubRelations struct {
	Triples []model.Triple
	Err     error
	Texts   []string
}

func (s *stubRelations) ExtractRelationships(_ context.Context, text string, _ []string) ([]model.Triple, error) {
	s.Texts = append(s.Texts, text)
	return s.Triples, s.Err
}
