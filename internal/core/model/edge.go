package model

// Canonical relation labels produced by the verb lexicon.
const (
	RelationTeaches    = "TEACHES"
	RelationLearnsFrom = "LEARNS_FROM"
	RelationInfluences = "INFLUENCES"
	RelationCritiques  = "CRITIQUES"
	RelationRefutes    = "REFUTES"
	RelationCites      = "CITES"
	RelationAgreesWith = "AGREES_WITH"
	RelationDisagrees  = "DISAGREES_WITH"
	RelationBuildsOn   = "BUILDS_ON"
	RelationRespondsTo = "RESPONDS_TO"
	RelationDefends    = "DEFENDS"
	RelationInterprets = "INTERPRETS"
)

const (
	SourceRuleBased = "rule_based"
	SourceLLM       = "llm"
)

// Triple is a candidate (subject, relation, object) fact. Raw and validated triples share the type.
type Triple struct {
	Subject    string  `json:"subject"`
	Relation   string  `json:"relation"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Source     string  `json:"source"`
}

// Key identifies a triple for deduplication.
func (t Triple) Key() TripleKey {
	return TripleKey{Subject: t.Subject, Relation: t.Relation, Object: t.Object}
}

type TripleKey struct {
	Subject  string
	Relation string
	Object   string
}

// Relationship is a persisted edge between two repository entities.
type Relationship struct {
	ID         string                 `json:"id,omitempty"`
	SubjectID  string                 `json:"subject_id"`
	Relation   string                 `json:"relation"`
	ObjectID   string                 `json:"object_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// OtherEnd returns the id on the opposite side of entityID.
func (r Relationship) OtherEnd(entityID string) string {
	if r.SubjectID == entityID {
		return r.ObjectID
	}
	return r.SubjectID
}
