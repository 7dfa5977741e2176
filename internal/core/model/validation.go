package model

import (
	"encoding/json"
	"time"
)

type ValidationStatus string

const (
	StatusPending      ValidationStatus = "PENDING"
	StatusApproved     ValidationStatus = "APPROVED"
	StatusRejected     ValidationStatus = "REJECTED"
	StatusExpertReview ValidationStatus = "EXPERT_REVIEW"
)

func (s ValidationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank orders priorities so that HIGH sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

func (p Priority) Valid() bool {
	return p.Rank() < 3
}

const (
	ItemEntity       = "entity"
	ItemRelationship = "relationship"
)

type ExpertAnnotation struct {
	ExpertID        string           `json:"expert_id"`
	ExpertName      string           `json:"expert_name"`
	Status          ValidationStatus `json:"status"`
	ConfidenceScore float64          `json:"confidence_score"`
	Comments        string           `json:"comments,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ValidationItem is a unit of extracted knowledge awaiting automatic or expert-consensus approval.
// Annotations are append-only.
type ValidationItem struct {
	ID                   string             `json:"id"`
	ItemType             string             `json:"item_type"`
	ItemData             json.RawMessage    `json:"item_data"`
	ExtractionConfidence float64            `json:"extraction_confidence"`
	Priority             Priority           `json:"priority"`
	Status               ValidationStatus   `json:"status"`
	Annotations          []ExpertAnnotation `json:"annotations"`
	ConsensusScore       float64            `json:"consensus_score"`
	FinalStatus          ValidationStatus   `json:"final_status,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	ResolvedAt           *time.Time         `json:"resolved_at,omitempty"`
}

// Clone returns a copy that shares no mutable state with the receiver.
func (v ValidationItem) Clone() ValidationItem {
	out := v
	if v.ItemData != nil {
		out.ItemData = append(json.RawMessage(nil), v.ItemData...)
	}
	out.Annotations = append([]ExpertAnnotation(nil), v.Annotations...)
	if v.ResolvedAt != nil {
		t := *v.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

type ValidationStatistics struct {
	TotalItems            int                      `json:"total_items"`
	TotalAnnotations      int                      `json:"total_annotations"`
	StatusDistribution    map[ValidationStatus]int `json:"status_distribution"`
	PriorityDistribution  map[Priority]int         `json:"priority_distribution"`
	TypeDistribution      map[string]int           `json:"type_distribution"`
	AverageConsensusScore float64                  `json:"average_consensus_score"`
	ExpertsAssigned       int                      `json:"experts_assigned"`
}

type ValidationThresholds struct {
	AutoApprove  float64 `json:"auto_approve"`
	ExpertReview float64 `json:"expert_review"`
	MinConsensus float64 `json:"min_consensus"`
	MinReviews   int     `json:"min_reviews"`
}

// ValidationExport is the audit snapshot of the expert registry.
type ValidationExport struct {
	ValidationItems   []ValidationItem     `json:"validation_items"`
	ExpertAssignments map[string][]string  `json:"expert_assignments"`
	Statistics        ValidationStatistics `json:"statistics"`
	ExportTimestamp   time.Time            `json:"export_timestamp"`
	Thresholds        ValidationThresholds `json:"thresholds"`
}
