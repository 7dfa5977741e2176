package model

import "time"

// ExtractionResult summarizes one ExtractKnowledgeGraph call. Callers must check Errors even when counters are non-zero.
type ExtractionResult struct {
	DocumentID           string        `json:"document_id"`
	EntitiesCreated      int           `json:"entities_created"`
	EntitiesFound        int           `json:"entities_found"`
	RelationshipsCreated int           `json:"relationships_created"`
	TriplesExtracted     int           `json:"triples_extracted"`
	TriplesValidated     int           `json:"triples_validated"`
	ValidationsSubmitted int           `json:"validations_submitted"`
	Errors               []string      `json:"errors"`
	Warnings             []string      `json:"warnings"`
	ProcessingTime       time.Duration `json:"-"`
}

func (r *ExtractionResult) Success() bool {
	return len(r.Errors) == 0
}

// ExtractionSummary is the JSON-compatible rendering of an ExtractionResult.
type ExtractionSummary struct {
	DocumentID           string   `json:"document_id"`
	EntitiesCreated      int      `json:"entities_created"`
	EntitiesFound        int      `json:"entities_found"`
	RelationshipsCreated int      `json:"relationships_created"`
	TriplesExtracted     int      `json:"triples_extracted"`
	TriplesValidated     int      `json:"triples_validated"`
	ValidationsSubmitted int      `json:"validations_submitted"`
	Errors               []string `json:"errors"`
	Warnings             []string `json:"warnings"`
	ProcessingTime       float64  `json:"processing_time"`
	Success              bool     `json:"success"`
}

func (r *ExtractionResult) Summary() ExtractionSummary {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ExtractionSummary{
		DocumentID:           r.DocumentID,
		EntitiesCreated:      r.EntitiesCreated,
		EntitiesFound:        r.EntitiesFound,
		RelationshipsCreated: r.RelationshipsCreated,
		TriplesExtracted:     r.TriplesExtracted,
		TriplesValidated:     r.TriplesValidated,
		ValidationsSubmitted: r.ValidationsSubmitted,
		Errors:               errs,
		Warnings:             warnings,
		ProcessingTime:       r.ProcessingTime.Seconds(),
		Success:              r.Success(),
	}
}

// EntityRelationships is the read model returned for a single entity.
type EntityRelationships struct {
	Entity        Entity         `json:"entity"`
	Relationships []Relationship `json:"relationships"`
	Neighbors     []Entity       `json:"neighbors"`
	Related       []Entity       `json:"related"`
}

type EntityConnections struct {
	Entity            Entity `json:"entity"`
	RelationshipCount int    `json:"relationship_count"`
}

// NetworkAnalysis aggregates the relationship structure of the stored graph.
type NetworkAnalysis struct {
	TotalEntities                 int                 `json:"total_entities"`
	TotalRelationships            int                 `json:"total_relationships"`
	AverageRelationshipsPerEntity float64             `json:"average_relationships_per_entity"`
	MostConnected                 []EntityConnections `json:"most_connected"`
	EntityTypeDistribution        map[EntityType]int  `json:"entity_type_distribution"`
	Communities                   [][]Entity          `json:"communities"`
}
