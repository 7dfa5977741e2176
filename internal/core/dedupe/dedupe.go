package dedupe

import (
	"math"
	"strings"

	"github.com/agenthands/philograph/internal/core/model"
)

const DefaultMinConfidence = 0.6

// TripleValidator filters raw triples by confidence and collapses duplicates.
type TripleValidator struct {
	MinConfidence float64
}

func NewTripleValidator(minConfidence float64) *TripleValidator {
	return &TripleValidator{MinConfidence: minConfidence}
}

func (v *TripleValidator) Validate(triples []model.Triple) []model.Triple {
	return Validate(triples, v.MinConfidence)
}

// Validate drops triples with an empty field or a confidence outside [minConfidence, 1] and keeps, for every
// (subject, relation, object), the instance with the highest confidence. The first instance wins ties and output
// follows the order in which each key first appeared. Validate(Validate(t, c), c) == Validate(t, c).
func Validate(triples []model.Triple, minConfidence float64) []model.Triple {
	out := []model.Triple{}
	index := make(map[model.TripleKey]int)

	for _, t := range triples {
		if !wellFormed(t) || t.Confidence < minConfidence {
			continue
		}
		if i, ok := index[t.Key()]; ok {
			if t.Confidence > out[i].Confidence {
				out[i] = t
			}
			continue
		}
		index[t.Key()] = len(out)
		out = append(out, t)
	}
	return out
}

func wellFormed(t model.Triple) bool {
	if strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.Relation) == "" || strings.TrimSpace(t.Object) == "" {
		return false
	}
	return !math.IsNaN(t.Confidence) && t.Confidence >= 0 && t.Confidence <= 1
}
