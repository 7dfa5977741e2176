package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/agenthands/philograph/internal/core/model"
)

const (
	DefaultRuleConfidence       = 0.7
	DefaultPhraseRuleConfidence = 0.75
)

// namePhrase matches a capitalized word sequence such as "Socrates", "Thomas Aquinas" or "Søren Kierkegaard".
const namePhrase = `\p{Lu}[\p{L}\p{M}\d_'-]*(?:[ \t]+\p{Lu}[\p{L}\p{M}\d_'-]*)*`

// Go's \b only knows ASCII word characters, so name edges are checked against any letter, mark or digit.
// Both guards consume a character; callers take positions from the capture groups.
const (
	nameStart = `(?:^|[^\p{L}\p{M}\d_])`
	nameEnd   = `(?:[^\p{L}\p{M}\d_]|$)`
)

// LexiconEntry maps a surface verb or phrase to a canonical relation label.
type LexiconEntry struct {
	Phrase     string
	Relation   string
	Confidence float64
}

var defaultLexicon = []LexiconEntry{
	{Phrase: "teaches", Relation: model.RelationTeaches},
	{Phrase: "taught", Relation: model.RelationTeaches},
	{Phrase: "instructs", Relation: model.RelationTeaches},
	{Phrase: "mentors", Relation: model.RelationTeaches},
	{Phrase: "learns from", Relation: model.RelationLearnsFrom},
	{Phrase: "learned from", Relation: model.RelationLearnsFrom},
	{Phrase: "studied under", Relation: model.RelationLearnsFrom},
	{Phrase: "influences", Relation: model.RelationInfluences},
	{Phrase: "influenced", Relation: model.RelationInfluences},
	{Phrase: "affects", Relation: model.RelationInfluences},
	{Phrase: "inspired", Relation: model.RelationInfluences},
	{Phrase: "critiques", Relation: model.RelationCritiques},
	{Phrase: "critiqued", Relation: model.RelationCritiques},
	{Phrase: "criticizes", Relation: model.RelationCritiques},
	{Phrase: "criticises", Relation: model.RelationCritiques},
	{Phrase: "challenges", Relation: model.RelationCritiques},
	{Phrase: "refutes", Relation: model.RelationRefutes},
	{Phrase: "refuted", Relation: model.RelationRefutes},
	{Phrase: "cites", Relation: model.RelationCites},
	{Phrase: "quotes", Relation: model.RelationCites},
	{Phrase: "references", Relation: model.RelationCites},
	{Phrase: "agrees with", Relation: model.RelationAgreesWith},
	{Phrase: "sides with", Relation: model.RelationAgreesWith},
	{Phrase: "disagrees with", Relation: model.RelationDisagrees},
	{Phrase: "opposes", Relation: model.RelationDisagrees},
	{Phrase: "builds on", Relation: model.RelationBuildsOn},
	{Phrase: "builds upon", Relation: model.RelationBuildsOn},
	{Phrase: "extends", Relation: model.RelationBuildsOn},
	{Phrase: "responds to", Relation: model.RelationRespondsTo},
	{Phrase: "replies to", Relation: model.RelationRespondsTo},
	{Phrase: "defends", Relation: model.RelationDefends},
	{Phrase: "interprets", Relation: model.RelationInterprets},
}

type compiledEntry struct {
	LexiconEntry
	re *regexp.Regexp
}

// Lexicon is the verb table driving rule-based relationship extraction.
type Lexicon struct {
	mu      sync.RWMutex
	entries []compiledEntry
}

// NewLexicon returns a lexicon seeded with the default philosophical verbs.
func NewLexicon() *Lexicon {
	l := &Lexicon{}
	for _, e := range defaultLexicon {
		_ = l.Register(e.Phrase, e.Relation, e.Confidence)
	}
	return l
}

// Register adds or replaces a surface phrase. A zero confidence selects the default for the phrase length.
func (l *Lexicon) Register(phrase, relation string, confidence float64) error {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) == 0 {
		return fmt.Errorf("lexicon phrase must not be empty")
	}
	relation = strings.ToUpper(strings.TrimSpace(relation))
	if relation == "" {
		return fmt.Errorf("relation label must not be empty for %q", phrase)
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence for %q must be within [0,1], got %v", phrase, confidence)
	}
	if confidence == 0 {
		confidence = DefaultRuleConfidence
		if len(words) > 1 {
			confidence = DefaultPhraseRuleConfidence
		}
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	expr := nameStart + `(` + namePhrase + `)\s+(?i:` + strings.Join(quoted, `\s+`) + `)\s+(` + namePhrase + `)` + nameEnd
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("failed to compile lexicon entry %q: %w", phrase, err)
	}

	entry := compiledEntry{
		LexiconEntry: LexiconEntry{Phrase: strings.Join(words, " "), Relation: relation, Confidence: confidence},
		re:           re,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.Phrase == entry.Phrase {
			l.entries[i] = entry
			return nil
		}
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Lookup returns the relation label for a surface phrase.
func (l *Lexicon) Lookup(phrase string) (string, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Phrase == key {
			return e.Relation, true
		}
	}
	return "", false
}

// Relations lists the distinct canonical labels in sorted order.
func (l *Lexicon) Relations() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range l.entries {
		if !seen[e.Relation] {
			seen[e.Relation] = true
			out = append(out, e.Relation)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Lexicon) snapshot() []compiledEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]compiledEntry(nil), l.entries...)
}
