package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/logging"
)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, DefaultThresholds(), logging.Discard())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	counter := 0
	svc.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("item-%03d", counter)
	}
	return svc
}

var triple = model.Triple{Subject: "Socrates", Relation: "TEACHES", Object: "Plato", Confidence: 0.7}

func approve(expert string) Annotation {
	return Annotation{ExpertID: expert, ExpertName: "Dr. " + expert, Status: model.StatusApproved, ConfidenceScore: 0.9}
}

func reject(expert string) Annotation {
	return Annotation{ExpertID: expert, ExpertName: "Dr. " + expert, Status: model.StatusRejected, ConfidenceScore: 0.8}
}

func TestSubmitForValidation_Routing(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		priority   model.Priority
		status     model.ValidationStatus
		wantPrio   model.Priority
	}{
		{"auto approve", 0.98, model.PriorityLow, model.StatusApproved, model.PriorityLow},
		{"exactly auto approve", 0.95, "", model.StatusApproved, model.PriorityMedium},
		{"pending", 0.7, model.PriorityLow, model.StatusPending, model.PriorityLow},
		{"exactly expert review", 0.5, "", model.StatusPending, model.PriorityMedium},
		{"expert review", 0.3, model.PriorityLow, model.StatusExpertReview, model.PriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, NewMemoryStore())

			item, err := svc.SubmitForValidation(context.Background(), model.ItemRelationship, triple, tt.confidence, tt.priority)

			require.NoError(t, err)
			assert.Equal(t, tt.status, item.Status)
			assert.Equal(t, tt.wantPrio, item.Priority)
			assert.Empty(t, item.Annotations)
			if tt.status == model.StatusApproved {
				assert.Equal(t, model.StatusApproved, item.FinalStatus)
				assert.NotNil(t, item.ResolvedAt)
			}

			var data model.Triple
			require.NoError(t, json.Unmarshal(item.ItemData, &data))
			assert.Equal(t, "Socrates", data.Subject)
		})
	}
}

func TestSubmitForValidation_Rejects(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	_, err := svc.SubmitForValidation(ctx, "document", triple, 0.7, "")
	assert.True(t, errors.Is(err, ErrInvalidItem))

	_, err = svc.SubmitForValidation(ctx, model.ItemEntity, triple, 1.2, "")
	assert.True(t, errors.Is(err, ErrInvalidItem))

	_, err = svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.7, "URGENT")
	assert.True(t, errors.Is(err, ErrInvalidItem))

	_, err = svc.SubmitForValidation(ctx, model.ItemEntity, func() {}, 0.7, "")
	assert.True(t, errors.Is(err, ErrInvalidItem))
}

func TestSubmitExpertAnnotation_Consensus(t *testing.T) {
	tests := []struct {
		name        string
		annotations []Annotation
		status      model.ValidationStatus
		final       model.ValidationStatus
		consensus   float64
	}{
		{"two approvals", []Annotation{approve("e1"), approve("e2")}, model.StatusApproved, model.StatusApproved, 1.0},
		{"two rejections", []Annotation{reject("e1"), reject("e2")}, model.StatusRejected, model.StatusRejected, 0.0},
		{"one review is not enough", []Annotation{approve("e1")}, model.StatusPending, "", 1.0},
		{"split waits for another review", []Annotation{approve("e1"), reject("e2")}, model.StatusExpertReview, "", 0.5},
		{"split then approval", []Annotation{approve("e1"), reject("e2"), approve("e3")}, model.StatusApproved, model.StatusApproved, 2.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, NewMemoryStore())
			ctx := context.Background()
			item, err := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.7, "")
			require.NoError(t, err)

			for _, a := range tt.annotations {
				item, err = svc.SubmitExpertAnnotation(ctx, item.ID, a)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.status, item.Status)
			assert.Equal(t, tt.final, item.FinalStatus)
			assert.InDelta(t, tt.consensus, item.ConsensusScore, 1e-9)
			assert.Len(t, item.Annotations, len(tt.annotations))
			if tt.status == model.StatusExpertReview {
				assert.Equal(t, model.PriorityHigh, item.Priority)
			}

			stored, err := svc.Store.Get(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, item.Status, stored.Status)
		})
	}
}

func TestSubmitExpertAnnotation_RepeatedExpertCountsOnce(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	item, err := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.7, "")
	require.NoError(t, err)

	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, approve("e1"))
	require.NoError(t, err)
	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, approve("e1"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, item.Status)
	assert.Empty(t, item.FinalStatus)
	assert.Len(t, item.Annotations, 2)

	// a revised verdict replaces the earlier one
	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, reject("e1"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, item.ConsensusScore)

	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, reject("e2"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, item.Status)
	assert.Len(t, item.Annotations, 4)
}

func TestSubmitExpertAnnotation_UnknownIDsLeaveNoLocks(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.SubmitExpertAnnotation(ctx, fmt.Sprintf("missing-%d", i), approve("e1"))
		require.True(t, errors.Is(err, ErrItemNotFound))
	}

	locks := 0
	svc.locks.Range(func(_, _ interface{}) bool {
		locks++
		return true
	})
	assert.Zero(t, locks)
}

func TestSubmitExpertAnnotation_TerminalIsSticky(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	item, err := svc.SubmitForValidation(ctx, model.ItemEntity, map[string]string{"name": "Plato"}, 0.99, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, item.Status)

	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, reject("e1"))
	require.NoError(t, err)
	item, err = svc.SubmitExpertAnnotation(ctx, item.ID, reject("e2"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusApproved, item.Status)
	assert.Equal(t, model.StatusApproved, item.FinalStatus)
	assert.Len(t, item.Annotations, 2)
	assert.Equal(t, 0.0, item.ConsensusScore)
}

func TestSubmitExpertAnnotation_Errors(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	item, err := svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.7, "")
	require.NoError(t, err)

	_, err = svc.SubmitExpertAnnotation(ctx, "missing", approve("e1"))
	assert.True(t, errors.Is(err, ErrItemNotFound))

	_, err = svc.SubmitExpertAnnotation(ctx, item.ID, Annotation{ExpertID: "e1", Status: model.StatusPending})
	assert.True(t, errors.Is(err, ErrInvalidAnnotation))

	_, err = svc.SubmitExpertAnnotation(ctx, item.ID, Annotation{Status: model.StatusApproved})
	assert.True(t, errors.Is(err, ErrInvalidAnnotation))

	_, err = svc.SubmitExpertAnnotation(ctx, item.ID, Annotation{ExpertID: "e1", Status: model.StatusApproved, ConfidenceScore: 2})
	assert.True(t, errors.Is(err, ErrInvalidAnnotation))
}

func TestSubmitExpertAnnotation_ConcurrentExpertsLoseNothing(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	svc.Thresholds.MinReviews = 100
	ctx := context.Background()
	item, err := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.7, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitExpertAnnotation(ctx, item.ID, approve(fmt.Sprintf("e%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := svc.Store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Annotations, 50)
}

func TestAssignExpert(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	a, err := svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.7, "")
	require.NoError(t, err)
	b, err := svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.7, "")
	require.NoError(t, err)

	require.NoError(t, svc.AssignExpert(ctx, "kant-scholar", []string{a.ID, b.ID, a.ID}))
	require.NoError(t, svc.AssignExpert(ctx, "plato-scholar", []string{a.ID}))

	err = svc.AssignExpert(ctx, "hume-scholar", []string{a.ID, "missing"})
	assert.True(t, errors.Is(err, ErrItemNotFound))

	assignments, err := svc.Store.Assignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"kant-scholar":  {a.ID, b.ID},
		"plato-scholar": {a.ID},
	}, assignments)
}

func TestGetPendingValidations(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	low, _ := svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.7, model.PriorityLow)
	medium, _ := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.7, model.PriorityMedium)
	urgent, _ := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.2, model.PriorityLow)
	_, _ = svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.99, model.PriorityHigh)

	pending, err := svc.GetPendingValidations(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID, medium.ID, low.ID}, ids(pending))

	rels, err := svc.GetPendingValidations(ctx, "", model.ItemRelationship)
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID, medium.ID}, ids(rels))

	lows, err := svc.GetPendingValidations(ctx, model.PriorityLow, "")
	require.NoError(t, err)
	assert.Equal(t, []string{low.ID}, ids(lows))
}

func TestStatisticsAndExport(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()
	auto, _ := svc.SubmitForValidation(ctx, model.ItemEntity, triple, 0.99, "")
	pending, _ := svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.7, "")
	_, _ = svc.SubmitForValidation(ctx, model.ItemRelationship, triple, 0.1, "")

	_, err := svc.SubmitExpertAnnotation(ctx, pending.ID, approve("e1"))
	require.NoError(t, err)
	_, err = svc.SubmitExpertAnnotation(ctx, pending.ID, approve("e2"))
	require.NoError(t, err)
	require.NoError(t, svc.AssignExpert(ctx, "e1", []string{pending.ID}))

	approved, err := svc.GetApprovedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{auto.ID, pending.ID}, ids(approved))

	stats, err := svc.GetValidationStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.TotalAnnotations)
	assert.Equal(t, 2, stats.StatusDistribution[model.StatusApproved])
	assert.Equal(t, 1, stats.StatusDistribution[model.StatusExpertReview])
	assert.Equal(t, 0, stats.StatusDistribution[model.StatusRejected])
	assert.Equal(t, 1, stats.PriorityDistribution[model.PriorityHigh])
	assert.Equal(t, 2, stats.TypeDistribution[model.ItemRelationship])
	assert.Equal(t, 1.0, stats.AverageConsensusScore)
	assert.Equal(t, 1, stats.ExpertsAssigned)

	export, err := svc.ExportValidationData(ctx)
	require.NoError(t, err)
	assert.Len(t, export.ValidationItems, 3)
	assert.Equal(t, DefaultThresholds(), export.Thresholds)
	assert.False(t, export.ExportTimestamp.IsZero())

	raw, err := json.Marshal(export)
	require.NoError(t, err)
	for _, key := range []string{"validation_items", "expert_assignments", "statistics", "export_timestamp", "thresholds", "min_reviews"} {
		assert.Contains(t, string(raw), key)
	}
}

func TestNewService_InvalidThresholds(t *testing.T) {
	bad := DefaultThresholds()
	bad.MinConsensus = 0.5
	_, err := NewService(NewMemoryStore(), bad, nil)
	assert.True(t, errors.Is(err, ErrInvalidThresholds))

	bad = DefaultThresholds()
	bad.ExpertReview = 0.99
	_, err = NewService(NewMemoryStore(), bad, nil)
	assert.True(t, errors.Is(err, ErrInvalidThresholds))
}

func ids(items []model.ValidationItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
