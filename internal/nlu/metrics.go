package nlu

import "github.com/prometheus/client_golang/prometheus"

var llmLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bookforme",
		Subsystem: "nlu",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM completions",
		// Focus on sub-10s buckets with a few higher ones for visibility.
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	},
	[]string{"model", "purpose", "status"},
)

var llmTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bookforme",
		Subsystem: "nlu",
		Name:      "llm_tokens_total",
		Help:      "Tokens used by the LLM",
	},
	[]string{"model", "type"}, // type: input, output, total
)

var extractOutcomeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bookforme",
		Subsystem: "nlu",
		Name:      "extract_outcome_total",
		Help:      "Counts intent extractions by outcome",
	},
	[]string{"model", "outcome"}, // outcome: ok, retry_ok, unparsed, downgraded, error
)

func init() {
	prometheus.MustRegister(llmLatency)
	prometheus.MustRegister(llmTokensTotal)
	prometheus.MustRegister(extractOutcomeTotal)
}

// RegisterMetrics registers NLU metrics with a custom registry.
// Use this when exposing a non-default registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(llmLatency, llmTokensTotal, extractOutcomeTotal)
}

func observeCompletion(model, purpose string, seconds float64, usage TokenUsage, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmLatency.WithLabelValues(model, purpose, status).Observe(seconds)
	if usage.InputTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "output").Add(float64(usage.OutputTokens))
	}
	if usage.TotalTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "total").Add(float64(usage.TotalTokens))
	}
}
