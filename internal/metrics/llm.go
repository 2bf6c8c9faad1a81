package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM completion Prometheus metrics. Covers query expansion and summarization calls.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests",
		},
		[]string{"model", "purpose", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "purpose"},
	)

	ExpansionDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "expansion_degraded_total",
			Help:      "Searches that fell back to the original query only",
		},
	)

	SummariesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "summaries_skipped_total",
			Help:      "Result summaries skipped, by reason",
		},
		[]string{"reason"}, // "short_body" / "llm_error"
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers Prometheus LLM metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(ExpansionDegradedTotal)
	prometheus.MustRegister(SummariesSkippedTotal)
	llmMetricsRegistered = true
}
