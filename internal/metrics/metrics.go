package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "philograph_extraction_duration_seconds",
			Help: "Time spent in extract_knowledge_graph calls",
		},
		[]string{"status"},
	)

	EntitiesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "philograph_entities_extracted_total",
			Help: "Number of aggregated entities extracted",
		},
		[]string{"entity_type"},
	)

	TriplesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "philograph_triples_extracted_total",
			Help: "Number of raw triples extracted",
		},
		[]string{"relation", "source"},
	)

	LLMFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "philograph_llm_fallbacks_total",
			Help: "Number of times LLM-assisted relationship extraction fell back to rules",
		},
	)

	PersistenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "philograph_persistence_errors_total",
			Help: "Repository failures recorded during extraction",
		},
		[]string{"operation"},
	)

	ValidationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "philograph_validation_transitions_total",
			Help: "Validation item status changes",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(EntitiesExtracted)
	prometheus.MustRegister(TriplesExtracted)
	prometheus.MustRegister(LLMFallbacks)
	prometheus.MustRegister(PersistenceErrors)
	prometheus.MustRegister(ValidationTransitions)
}
