package extraction

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Span is a labelled region of text reported by a Tagger. Start and End are byte offsets.
type Span struct {
	Text  string
	Label string
	Start int
	End   int
}

// Tagger is the optional statistical entity recognizer. Implementations must be safe for concurrent use.
type Tagger interface {
	Tag(text string) ([]Span, error)
}

// NoTagger is the absent variant: extraction relies on the pattern table alone.
type NoTagger struct{}

func (NoTagger) Tag(string) ([]Span, error) {
	return nil, nil
}

// ProseTagger recognizes entities with prose's averaged perceptron model.
type ProseTagger struct{}

func NewProseTagger() *ProseTagger {
	return &ProseTagger{}
}

func (t *ProseTagger) Tag(text string) ([]Span, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, err
	}

	// prose reports entity text without offsets, so locate each one after the previous match.
	var spans []Span
	cursor := 0
	for _, ent := range doc.Entities() {
		if ent.Text == "" {
			continue
		}
		idx := strings.Index(text[cursor:], ent.Text)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(ent.Text)
		spans = append(spans, Span{Text: ent.Text, Label: ent.Label, Start: start, End: end})
		cursor = end
	}
	return spans, nil
}
