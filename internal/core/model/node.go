package model

import "time"

type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityConcept EntityType = "CONCEPT"
	EntityPlace   EntityType = "PLACE"
	EntityWork    EntityType = "WORK"
)

// ParseEntityType maps a stored or user supplied type onto the closed set, defaulting to CONCEPT.
func ParseEntityType(s string) EntityType {
	switch EntityType(s) {
	case EntityPerson, EntityConcept, EntityPlace, EntityWork:
		return EntityType(s)
	}
	return EntityConcept
}

type Entity struct {
	ID               string     `json:"id,omitempty"`
	Name             string     `json:"name"`
	EntityType       EntityType `json:"entity_type"`
	SourceDocumentID string     `json:"source_document_id,omitempty"`
	Confidence       float64    `json:"confidence"`
	Mentions         []Mention  `json:"mentions,omitempty"`
	CreatedAt        time.Time  `json:"created_at,omitempty"`
}

func (e Entity) MentionCount() int {
	return len(e.Mentions)
}

// Mention is a single occurrence of an entity name. Positions are byte offsets into the source document.
type Mention struct {
	Text          string  `json:"text"`
	Context       string  `json:"context"`
	StartPosition int     `json:"start_position"`
	EndPosition   int     `json:"end_position"`
	DocumentID    string  `json:"document_id"`
	Confidence    float64 `json:"confidence"`
}
