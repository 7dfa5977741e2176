package extraction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/agenthands/philograph/internal/core/common"
	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/llm"
	"github.com/agenthands/philograph/internal/metrics"
)

// RelationshipExtractor finds subject-relation-object triples in text. When knownEntities is non-nil only
// triples whose subject and object both match a known name (case-insensitively) are kept.
type RelationshipExtractor interface {
	ExtractRelationships(ctx context.Context, text string, knownEntities []string) ([]model.Triple, error)
}

// FallbackError is returned together with usable rule-based triples when the LLM strategy could not be used.
type FallbackError struct {
	Reason error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("llm extraction unavailable, used rule-based fallback: %v", e.Reason)
}

func (e *FallbackError) Unwrap() error {
	return e.Reason
}

// NewRelationshipExtractor selects the strategy. With useLLM the rule-based extractor becomes the fallback.
func NewRelationshipExtractor(useLLM bool, client llm.LLMClient, lexicon *Lexicon, prompt string, logger *logrus.Logger) RelationshipExtractor {
	rules := NewRuleBasedExtractor(lexicon)
	if !useLLM {
		return rules
	}
	return NewLLMAssistedExtractor(client, rules, prompt, logger)
}

type RuleBasedExtractor struct {
	Lexicon *Lexicon
}

func NewRuleBasedExtractor(lexicon *Lexicon) *RuleBasedExtractor {
	if lexicon == nil {
		lexicon = NewLexicon()
	}
	return &RuleBasedExtractor{Lexicon: lexicon}
}

type positionedTriple struct {
	model.Triple
	start int
}

// ExtractRelationships scans the whole text once per lexicon entry. Results are ordered by position.
func (r *RuleBasedExtractor) ExtractRelationships(_ context.Context, text string, knownEntities []string) ([]model.Triple, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Triple{}, nil
	}

	var found []positionedTriple
	for _, entry := range r.Lexicon.snapshot() {
		for _, m := range entry.re.FindAllStringSubmatchIndex(text, -1) {
			found = append(found, positionedTriple{
				Triple: model.Triple{
					Subject:    strings.TrimSpace(text[m[2]:m[3]]),
					Relation:   entry.Relation,
					Object:     strings.TrimSpace(text[m[4]:m[5]]),
					Confidence: entry.Confidence,
					Evidence:   text[m[2]:m[5]],
					Source:     model.SourceRuleBased,
				},
				start: m[2],
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].start < found[j].start
	})

	triples := make([]model.Triple, 0, len(found))
	for _, f := range found {
		triples = append(triples, f.Triple)
	}
	return filterKnown(triples, knownEntities), nil
}

func filterKnown(triples []model.Triple, knownEntities []string) []model.Triple {
	if knownEntities == nil {
		return triples
	}
	known := mapset.NewSet[string]()
	for _, name := range knownEntities {
		known.Add(strings.ToLower(strings.TrimSpace(name)))
	}

	kept := make([]model.Triple, 0, len(triples))
	for _, t := range triples {
		if known.Contains(strings.ToLower(t.Subject)) && known.Contains(strings.ToLower(t.Object)) {
			kept = append(kept, t)
		}
	}
	return kept
}

const DefaultLLMConfidence = 0.8

// Placeholders substituted into relationship prompts.
const (
	PromptLabels = "{labels}"
	PromptText   = "{text}"
)

const defaultRelationshipPrompt = `You extract relationships between philosophers, works, schools and concepts.
Allowed relation labels: {labels}

Return a JSON object with key "triples": a list of objects with "subject", "relation", "object",
"confidence" (0.0-1.0) and "evidence" (the exact sentence supporting the triple).
Use only the allowed labels. If there are none, return {"triples": []}.

TEXT:
{text}`

// LLMAssistedExtractor asks an LLM for triples and falls back to its rule-based extractor when no client is
// configured or the response is unusable. Fallbacks are logged, counted and reported through FallbackError.
type LLMAssistedExtractor struct {
	LLM      llm.LLMClient
	Fallback *RuleBasedExtractor
	Prompt   string
	Logger   *logrus.Logger
}

func NewLLMAssistedExtractor(client llm.LLMClient, fallback *RuleBasedExtractor, prompt string, logger *logrus.Logger) *LLMAssistedExtractor {
	if fallback == nil {
		fallback = NewRuleBasedExtractor(nil)
	}
	if prompt == "" {
		prompt = defaultRelationshipPrompt
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LLMAssistedExtractor{LLM: client, Fallback: fallback, Prompt: prompt, Logger: logger}
}

func (e *LLMAssistedExtractor) ExtractRelationships(ctx context.Context, text string, knownEntities []string) ([]model.Triple, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Triple{}, nil
	}
	if e.LLM == nil {
		return e.fallback(ctx, text, knownEntities, errors.New("no LLM client configured"))
	}

	labels := e.Fallback.Lexicon.Relations()
	prompt := strings.NewReplacer(PromptLabels, strings.Join(labels, ", "), PromptText, text).Replace(e.Prompt)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return e.fallback(ctx, text, knownEntities, fmt.Errorf("failed to generate triples: %w", err))
	}

	triples, err := parseLLMTriples(response, labels)
	if err != nil {
		return e.fallback(ctx, text, knownEntities, err)
	}
	return filterKnown(triples, knownEntities), nil
}

func (e *LLMAssistedExtractor) fallback(ctx context.Context, text string, knownEntities []string, reason error) ([]model.Triple, error) {
	metrics.LLMFallbacks.Inc()
	e.Logger.WithError(reason).Warn("Falling back to rule-based relationship extraction")

	triples, err := e.Fallback.ExtractRelationships(ctx, text, knownEntities)
	if err != nil {
		return nil, err
	}
	return triples, &FallbackError{Reason: reason}
}

func parseLLMTriples(response string, labels []string) ([]model.Triple, error) {
	jsonStr, err := common.ExtractJSONObject(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse llm triples: %w", err)
	}
	if !gjson.Valid(jsonStr) {
		return nil, fmt.Errorf("failed to parse llm triples: invalid JSON")
	}
	list := gjson.Get(jsonStr, "triples")
	if !list.IsArray() {
		return nil, fmt.Errorf("failed to parse llm triples: missing \"triples\" array")
	}

	allowed := mapset.NewSet(labels...)
	triples := []model.Triple{}
	for _, item := range list.Array() {
		relation := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(item.Get("relation").String()), " ", "_"))
		t := model.Triple{
			Subject:    strings.TrimSpace(item.Get("subject").String()),
			Relation:   relation,
			Object:     strings.TrimSpace(item.Get("object").String()),
			Confidence: DefaultLLMConfidence,
			Evidence:   item.Get("evidence").String(),
			Source:     model.SourceLLM,
		}
		if c := item.Get("confidence"); c.Exists() {
			t.Confidence = clamp01(c.Float())
		}
		if t.Subject == "" || t.Object == "" || !allowed.Contains(t.Relation) {
			continue
		}
		triples = append(triples, t)
	}
	return triples, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
