package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/metrics"
)

var (
	ErrItemNotFound      = errors.New("validation item not found")
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrInvalidItem       = errors.New("invalid validation item")
	ErrInvalidThresholds = errors.New("invalid validation thresholds")
)

func DefaultThresholds() model.ValidationThresholds {
	return model.ValidationThresholds{
		AutoApprove:  0.95,
		ExpertReview: 0.5,
		MinConsensus: 0.6,
		MinReviews:   2,
	}
}

func checkThresholds(t model.ValidationThresholds) error {
	if t.ExpertReview < 0 || t.AutoApprove > 1 || t.ExpertReview > t.AutoApprove {
		return fmt.Errorf("%w: need 0 <= expert_review (%v) <= auto_approve (%v) <= 1", ErrInvalidThresholds, t.ExpertReview, t.AutoApprove)
	}
	if t.MinConsensus <= 0.5 || t.MinConsensus > 1 {
		return fmt.Errorf("%w: min_consensus must be within (0.5,1], got %v", ErrInvalidThresholds, t.MinConsensus)
	}
	if t.MinReviews < 1 {
		return fmt.Errorf("%w: min_reviews must be >= 1, got %d", ErrInvalidThresholds, t.MinReviews)
	}
	return nil
}

// Annotation is an expert's verdict on one item. Only APPROVED and REJECTED are accepted.
type Annotation struct {
	ExpertID        string                 `json:"expert_id"`
	ExpertName      string                 `json:"expert_name"`
	Status          model.ValidationStatus `json:"status"`
	ConfidenceScore float64                `json:"confidence_score"`
	Comments        string                 `json:"comments"`
}

// Service runs the expert-consensus workflow over a Store. Annotation of one item is an atomic
// read-modify-write; different items proceed in parallel.
type Service struct {
	Store      Store
	Thresholds model.ValidationThresholds
	Logger     *logrus.Logger
	Now        func() time.Time
	NewID      func() string

	locks sync.Map
}

func NewService(store Store, thresholds model.ValidationThresholds, logger *logrus.Logger) (*Service, error) {
	if err := checkThresholds(thresholds); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		Store:      store,
		Thresholds: thresholds,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
		NewID:      uuid.NewString,
	}, nil
}

func (s *Service) lockFor(id string) *sync.Mutex {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// SubmitForValidation registers extracted knowledge. High confidence is approved at once, low confidence
// goes straight to expert review with HIGH priority, everything else waits as PENDING. An empty priority
// means MEDIUM.
func (s *Service) SubmitForValidation(ctx context.Context, itemType string, itemData interface{}, confidence float64, priority model.Priority) (model.ValidationItem, error) {
	if itemType != model.ItemEntity && itemType != model.ItemRelationship {
		return model.ValidationItem{}, fmt.Errorf("%w: unsupported item type %q", ErrInvalidItem, itemType)
	}
	if confidence < 0 || confidence > 1 {
		return model.ValidationItem{}, fmt.Errorf("%w: confidence must be within [0,1], got %v", ErrInvalidItem, confidence)
	}
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return model.ValidationItem{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidItem, priority)
	}
	data, err := json.Marshal(itemData)
	if err != nil {
		return model.ValidationItem{}, fmt.Errorf("%w: item data is not serializable: %v", ErrInvalidItem, err)
	}

	now := s.Now()
	item := model.ValidationItem{
		ID:                   s.NewID(),
		ItemType:             itemType,
		ItemData:             data,
		ExtractionConfidence: confidence,
		Priority:             priority,
		Status:               model.StatusPending,
		Annotations:          []model.ExpertAnnotation{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	switch {
	case confidence >= s.Thresholds.AutoApprove:
		item.Status = model.StatusApproved
		item.FinalStatus = model.StatusApproved
		item.ResolvedAt = &now
	case confidence < s.Thresholds.ExpertReview:
		item.Status = model.StatusExpertReview
		item.Priority = model.PriorityHigh
	}

	if err := s.Store.Put(ctx, item); err != nil {
		return model.ValidationItem{}, fmt.Errorf("failed to store validation item: %w", err)
	}
	metrics.ValidationTransitions.WithLabelValues(string(item.Status)).Inc()
	s.Logger.WithFields(logrus.Fields{
		"item_id":    item.ID,
		"item_type":  item.ItemType,
		"confidence": confidence,
		"status":     item.Status,
	}).Debug("Submitted item for validation")
	return item, nil
}

// SubmitExpertAnnotation appends an annotation and recomputes consensus. Items in a terminal status keep
// their status; the annotation is still recorded. An expert who annotates again revises their verdict:
// every annotation stays in the trail but only each expert's latest one is counted.
func (s *Service) SubmitExpertAnnotation(ctx context.Context, itemID string, a Annotation) (model.ValidationItem, error) {
	if a.ExpertID == "" {
		return model.ValidationItem{}, fmt.Errorf("%w: expert id is required", ErrInvalidAnnotation)
	}
	if a.Status != model.StatusApproved && a.Status != model.StatusRejected {
		return model.ValidationItem{}, fmt.Errorf("%w: status must be APPROVED or REJECTED, got %q", ErrInvalidAnnotation, a.Status)
	}
	if a.ConfidenceScore < 0 || a.ConfidenceScore > 1 {
		return model.ValidationItem{}, fmt.Errorf("%w: confidence score must be within [0,1], got %v", ErrInvalidAnnotation, a.ConfidenceScore)
	}

	// items are never deleted, so a lock is only created for ids that exist
	if _, err := s.Store.Get(ctx, itemID); err != nil {
		return model.ValidationItem{}, err
	}

	lock := s.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.Store.Get(ctx, itemID)
	if err != nil {
		return model.ValidationItem{}, err
	}

	now := s.Now()
	item.Annotations = append(item.Annotations, model.ExpertAnnotation{
		ExpertID:        a.ExpertID,
		ExpertName:      a.ExpertName,
		Status:          a.Status,
		ConfidenceScore: a.ConfidenceScore,
		Comments:        a.Comments,
		Timestamp:       now,
	})
	item.UpdatedAt = now

	previous := item.Status
	s.recompute(&item, now)

	if err := s.Store.Put(ctx, item); err != nil {
		return model.ValidationItem{}, fmt.Errorf("failed to store validation item: %w", err)
	}
	if item.Status != previous {
		metrics.ValidationTransitions.WithLabelValues(string(item.Status)).Inc()
		s.Logger.WithFields(logrus.Fields{
			"item_id":         item.ID,
			"from":            previous,
			"to":              item.Status,
			"consensus_score": item.ConsensusScore,
		}).Info("Validation item changed status")
	}
	return item, nil
}

func (s *Service) recompute(item *model.ValidationItem, now time.Time) {
	verdicts := latestVerdicts(item.Annotations)
	total := len(verdicts)
	approvals, rejections := 0, 0
	for _, status := range verdicts {
		switch status {
		case model.StatusApproved:
			approvals++
		case model.StatusRejected:
			rejections++
		}
	}
	item.ConsensusScore = float64(approvals) / float64(total)

	if item.Status.Terminal() || total < s.Thresholds.MinReviews {
		return
	}

	switch {
	case item.ConsensusScore >= s.Thresholds.MinConsensus:
		item.FinalStatus = model.StatusApproved
	case float64(rejections)/float64(total) >= s.Thresholds.MinConsensus:
		item.FinalStatus = model.StatusRejected
	default:
		// no qualified majority yet: wait for another review
		item.Status = model.StatusExpertReview
		item.Priority = model.PriorityHigh
		return
	}
	item.Status = item.FinalStatus
	item.ResolvedAt = &now
}

// latestVerdicts returns the most recent status per expert. Annotations are stored in submission order.
func latestVerdicts(annotations []model.ExpertAnnotation) map[string]model.ValidationStatus {
	verdicts := make(map[string]model.ValidationStatus, len(annotations))
	for _, a := range annotations {
		verdicts[a.ExpertID] = a.Status
	}
	return verdicts
}

// AssignExpert records that expertID should review itemIDs. Assignments are non-exclusive and nothing is
// recorded when any id is unknown.
func (s *Service) AssignExpert(ctx context.Context, expertID string, itemIDs []string) error {
	if expertID == "" {
		return fmt.Errorf("%w: expert id is required", ErrInvalidAnnotation)
	}
	for _, id := range itemIDs {
		if _, err := s.Store.Get(ctx, id); err != nil {
			return fmt.Errorf("cannot assign %s: %w", id, err)
		}
	}
	return s.Store.Assign(ctx, expertID, itemIDs)
}

// GetPendingValidations lists non-terminal items, HIGH priority first, then oldest first.
// Empty priority or itemType match everything.
func (s *Service) GetPendingValidations(ctx context.Context, priority model.Priority, itemType string) ([]model.ValidationItem, error) {
	items, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := []model.ValidationItem{}
	for _, item := range items {
		if item.Status.Terminal() {
			continue
		}
		if priority != "" && item.Priority != priority {
			continue
		}
		if itemType != "" && item.ItemType != itemType {
			continue
		}
		pending = append(pending, item)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.Rank() < pending[j].Priority.Rank()
	})
	return pending, nil
}

func (s *Service) GetApprovedItems(ctx context.Context) ([]model.ValidationItem, error) {
	items, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	approved := []model.ValidationItem{}
	for _, item := range items {
		if item.Status == model.StatusApproved {
			approved = append(approved, item)
		}
	}
	return approved, nil
}

func (s *Service) GetValidationStatistics(ctx context.Context) (model.ValidationStatistics, error) {
	items, err := s.Store.List(ctx)
	if err != nil {
		return model.ValidationStatistics{}, err
	}
	assignments, err := s.Store.Assignments(ctx)
	if err != nil {
		return model.ValidationStatistics{}, err
	}
	return statistics(items, assignments), nil
}

func statistics(items []model.ValidationItem, assignments map[string][]string) model.ValidationStatistics {
	stats := model.ValidationStatistics{
		TotalItems: len(items),
		StatusDistribution: map[model.ValidationStatus]int{
			model.StatusPending:      0,
			model.StatusApproved:     0,
			model.StatusRejected:     0,
			model.StatusExpertReview: 0,
		},
		PriorityDistribution: map[model.Priority]int{
			model.PriorityLow:    0,
			model.PriorityMedium: 0,
			model.PriorityHigh:   0,
		},
		TypeDistribution: map[string]int{},
		ExpertsAssigned:  len(assignments),
	}

	reviewed := 0
	sum := 0.0
	for _, item := range items {
		stats.StatusDistribution[item.Status]++
		stats.PriorityDistribution[item.Priority]++
		stats.TypeDistribution[item.ItemType]++
		stats.TotalAnnotations += len(item.Annotations)
		if len(item.Annotations) > 0 {
			reviewed++
			sum += item.ConsensusScore
		}
	}
	if reviewed > 0 {
		stats.AverageConsensusScore = sum / float64(reviewed)
	}
	return stats
}

// ExportValidationData returns a serializable snapshot of the whole registry for audit or backup.
func (s *Service) ExportValidationData(ctx context.Context) (model.ValidationExport, error) {
	items, err := s.Store.List(ctx)
	if err != nil {
		return model.ValidationExport{}, err
	}
	assignments, err := s.Store.Assignments(ctx)
	if err != nil {
		return model.ValidationExport{}, err
	}
	return model.ValidationExport{
		ValidationItems:   items,
		ExpertAssignments: assignments,
		Statistics:        statistics(items, assignments),
		ExportTimestamp:   s.Now(),
		Thresholds:        s.Thresholds,
	}, nil
}
