package validation

import (
	"context"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/agenthands/philograph/internal/core/model"
)

// Store owns the expert registry: validation items and expert assignments.
// Get returns ErrItemNotFound for unknown ids. Returned items never alias stored state.
type Store interface {
	Put(ctx context.Context, item model.ValidationItem) error
	Get(ctx context.Context, id string) (model.ValidationItem, error)
	List(ctx context.Context) ([]model.ValidationItem, error)
	Assign(ctx context.Context, expertID string, itemIDs []string) error
	Assignments(ctx context.Context) (map[string][]string, error)
}

type MemoryStore struct {
	mu          sync.RWMutex
	items       map[string]model.ValidationItem
	assignments map[string]mapset.Set[string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:       make(map[string]model.ValidationItem),
		assignments: make(map[string]mapset.Set[string]),
	}
}

func (s *MemoryStore) Put(_ context.Context, item model.ValidationItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.ValidationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return model.ValidationItem{}, ErrItemNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.ValidationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ValidationItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) Assign(_ context.Context, expertID string, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.assignments[expertID]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		s.assignments[expertID] = set
	}
	set.Append(itemIDs...)
	return nil
}

func (s *MemoryStore) Assignments(_ context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.assignments))
	for expert, set := range s.assignments {
		ids := set.ToSlice()
		sort.Strings(ids)
		out[expert] = ids
	}
	return out, nil
}

func sortByCreation(items []model.ValidationItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
