package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/core/model"
)

const (
	DefaultContextWindow     = 80
	DefaultPatternConfidence = 0.9
	DefaultTaggerConfidence  = 0.75
)

// DefaultLabelTypes maps tagger and pattern labels onto entity types. Unknown labels become CONCEPT.
var DefaultLabelTypes = map[string]model.EntityType{
	"PERSON":      model.EntityPerson,
	"ORG":         model.EntityConcept,
	"NORP":        model.EntityConcept,
	"GPE":         model.EntityPlace,
	"LOC":         model.EntityPlace,
	"WORK_OF_ART": model.EntityWork,
	"CONCEPT":     model.EntityConcept,
	"PLACE":       model.EntityPlace,
	"WORK":        model.EntityWork,
}

// Pattern registers a literal, case-sensitive entity name under a label.
type Pattern struct {
	Label string
	Text  string
}

var DefaultPatterns = []Pattern{
	{"PERSON", "Socrates"},
	{"PERSON", "Plato"},
	{"PERSON", "Aristotle"},
	{"PERSON", "Heraclitus"},
	{"PERSON", "Parmenides"},
	{"PERSON", "Epicurus"},
	{"PERSON", "Plotinus"},
	{"PERSON", "Augustine"},
	{"PERSON", "Thomas Aquinas"},
	{"PERSON", "Descartes"},
	{"PERSON", "Spinoza"},
	{"PERSON", "Leibniz"},
	{"PERSON", "Locke"},
	{"PERSON", "Hume"},
	{"PERSON", "Kant"},
	{"PERSON", "Hegel"},
	{"PERSON", "Kierkegaard"},
	{"PERSON", "Nietzsche"},
	{"PERSON", "Heidegger"},
	{"PERSON", "Wittgenstein"},
	{"PERSON", "Confucius"},
	{"ORG", "Academy"},
	{"ORG", "Lyceum"},
	{"ORG", "Stoicism"},
	{"CONCEPT", "Theory of Forms"},
	{"CONCEPT", "categorical imperative"},
	{"CONCEPT", "virtue ethics"},
	{"CONCEPT", "eudaimonia"},
	{"CONCEPT", "dialectic"},
	{"GPE", "Athens"},
	{"GPE", "Königsberg"},
	{"LOC", "Stagira"},
	{"WORK_OF_ART", "Republic"},
	{"WORK_OF_ART", "Nicomachean Ethics"},
	{"WORK_OF_ART", "Meditations on First Philosophy"},
	{"WORK_OF_ART", "Critique of Pure Reason"},
	{"WORK_OF_ART", "Phenomenology of Spirit"},
	{"WORK_OF_ART", "Thus Spoke Zarathustra"},
}

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

// EntityExtractor finds named entities through the pattern table and an optional Tagger and aggregates
// mentions by exact name. Registration is safe alongside concurrent extraction.
type EntityExtractor struct {
	Tagger            Tagger
	ContextWindow     int
	PatternConfidence float64
	TaggerConfidence  float64
	Logger            *logrus.Logger

	mu       sync.RWMutex
	patterns []compiledPattern
	labels   map[string]model.EntityType
}

func NewEntityExtractor(tagger Tagger, logger *logrus.Logger) *EntityExtractor {
	if tagger == nil {
		tagger = NoTagger{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &EntityExtractor{
		Tagger:            tagger,
		ContextWindow:     DefaultContextWindow,
		PatternConfidence: DefaultPatternConfidence,
		TaggerConfidence:  DefaultTaggerConfidence,
		Logger:            logger,
		labels:            make(map[string]model.EntityType, len(DefaultLabelTypes)),
	}
	for label, t := range DefaultLabelTypes {
		e.labels[label] = t
	}
	for _, p := range DefaultPatterns {
		// defaults are known to be valid
		_ = e.RegisterPattern(p.Label, p.Text)
	}
	return e
}

// NewPatternExtractor returns an extractor with no tagger and only the given patterns.
func NewPatternExtractor(patterns []Pattern, logger *logrus.Logger) (*EntityExtractor, error) {
	e := NewEntityExtractor(NoTagger{}, logger)
	e.patterns = nil
	for _, p := range patterns {
		if err := e.RegisterPattern(p.Label, p.Text); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterPattern adds a literal entity name. Re-registering the same text replaces its label.
func (e *EntityExtractor) RegisterPattern(label, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("pattern text must not be empty")
	}
	if label == "" {
		return fmt.Errorf("pattern label must not be empty for %q", text)
	}

	re, err := regexp.Compile(regexp.QuoteMeta(text))
	if err != nil {
		return fmt.Errorf("failed to compile pattern %q: %w", text, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.patterns {
		if p.Text == text {
			e.patterns[i] = compiledPattern{Pattern: Pattern{Label: label, Text: text}, re: re}
			return nil
		}
	}
	e.patterns = append(e.patterns, compiledPattern{Pattern: Pattern{Label: label, Text: text}, re: re})
	return nil
}

// RegisterLabel maps a tagger or pattern label to an entity type.
func (e *EntityExtractor) RegisterLabel(label string, entityType model.EntityType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.labels[label] = entityType
}

func (e *EntityExtractor) typeFor(label string) model.EntityType {
	if t, ok := e.labels[label]; ok {
		return t
	}
	return model.EntityConcept
}

// ExtractEntities returns one Entity per distinct exact name found in text, ordered by first occurrence.
// Tagger failures degrade to pattern matching and are only logged.
func (e *EntityExtractor) ExtractEntities(text, documentID string) []model.Entity {
	if strings.TrimSpace(text) == "" {
		return []model.Entity{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	agg := newMentionAggregator(documentID)

	for _, p := range e.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if !onWordEdges(text, loc[0], loc[1]) {
				continue
			}
			agg.add(p.Text, e.typeFor(p.Label), true, e.mention(text, loc[0], loc[1], documentID, e.PatternConfidence))
		}
	}

	spans, err := e.Tagger.Tag(text)
	if err != nil {
		e.Logger.WithError(err).WithField("document_id", documentID).
			Warn("Statistical tagger failed, using pattern matches only")
		spans = nil
	}
	for _, s := range spans {
		name := strings.TrimSpace(s.Text)
		if name == "" || s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		agg.add(name, e.typeFor(s.Label), false, e.mention(text, s.Start, s.End, documentID, e.TaggerConfidence))
	}

	return agg.entities()
}

func (e *EntityExtractor) mention(text string, start, end int, documentID string, confidence float64) model.Mention {
	return model.Mention{
		Text:          text[start:end],
		Context:       contextWindow(text, start, end, e.ContextWindow),
		StartPosition: start,
		EndPosition:   end,
		DocumentID:    documentID,
		Confidence:    confidence,
	}
}

type entityBuilder struct {
	entity     model.Entity
	fromRule   bool
	seen       map[[2]int]bool
	firstStart int
}

// mentionAggregator merges mentions by exact entity name. Pattern labels win over tagger labels.
type mentionAggregator struct {
	documentID string
	byName     map[string]*entityBuilder
}

func newMentionAggregator(documentID string) *mentionAggregator {
	return &mentionAggregator{documentID: documentID, byName: make(map[string]*entityBuilder)}
}

func (a *mentionAggregator) add(name string, entityType model.EntityType, fromRule bool, m model.Mention) {
	b, ok := a.byName[name]
	if !ok {
		b = &entityBuilder{
			entity: model.Entity{
				Name:             name,
				EntityType:       entityType,
				SourceDocumentID: a.documentID,
			},
			fromRule:   fromRule,
			seen:       make(map[[2]int]bool),
			firstStart: m.StartPosition,
		}
		a.byName[name] = b
	}
	if fromRule && !b.fromRule {
		b.entity.EntityType = entityType
		b.fromRule = true
	}

	key := [2]int{m.StartPosition, m.EndPosition}
	if b.seen[key] {
		if m.Confidence > b.entity.Confidence {
			b.entity.Confidence = m.Confidence
		}
		return
	}
	b.seen[key] = true
	b.entity.Mentions = append(b.entity.Mentions, m)
	if m.Confidence > b.entity.Confidence {
		b.entity.Confidence = m.Confidence
	}
	if m.StartPosition < b.firstStart {
		b.firstStart = m.StartPosition
	}
}

func (a *mentionAggregator) entities() []model.Entity {
	builders := make([]*entityBuilder, 0, len(a.byName))
	for _, b := range a.byName {
		sort.Slice(b.entity.Mentions, func(i, j int) bool {
			return b.entity.Mentions[i].StartPosition < b.entity.Mentions[j].StartPosition
		})
		builders = append(builders, b)
	}
	sort.Slice(builders, func(i, j int) bool {
		if builders[i].firstStart != builders[j].firstStart {
			return builders[i].firstStart < builders[j].firstStart
		}
		return builders[i].entity.Name < builders[j].entity.Name
	})

	out := make([]model.Entity, len(builders))
	for i, b := range builders {
		out[i] = b.entity
	}
	return out
}

// MergeEntities folds entities from several extraction passes (e.g. chunks) into one per exact name.
func MergeEntities(documentID string, batches ...[]model.Entity) []model.Entity {
	agg := newMentionAggregator(documentID)
	for _, batch := range batches {
		for _, ent := range batch {
			for _, m := range ent.Mentions {
				agg.add(ent.Name, ent.EntityType, true, m)
			}
		}
	}
	return agg.entities()
}

// onWordEdges reports whether text[start:end] is not glued to a neighbouring word. An edge is only checked
// when the match itself starts or ends with a word character, so names like "C++" still match.
func onWordEdges(text string, start, end int) bool {
	if first, _ := utf8.DecodeRuneInString(text[start:end]); isWordRune(first) && start > 0 {
		if prev, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(prev) {
			return false
		}
	}
	if last, _ := utf8.DecodeLastRuneInString(text[start:end]); isWordRune(last) && end < len(text) {
		if next, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(next) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func contextWindow(text string, start, end, window int) string {
	from := start - window
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + window
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}
