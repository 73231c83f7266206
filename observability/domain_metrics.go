package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmquery_generations_total",
			Help: "Generation requests by outcome (ok or error kind).",
		},
		[]string{"outcome"},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmquery_validation_rejections_total",
			Help: "Statements rejected by the security policy, by pipeline path.",
		},
		[]string{"path"},
	)
	llmRequestDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmquery_llm_request_duration_ms",
			Help:    "Completion API latency in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 5000, 10000, 20000, 40000, 60000},
		},
		[]string{"status"},
	)
	llmCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmquery_llm_cache_lookups_total",
			Help: "Completion cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmquery_llm_tokens_total",
			Help: "Tokens reported by the completion API.",
		},
		[]string{"type"},
	)
	queryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmquery_query_duration_ms",
			Help:    "Read-only query execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
		[]string{"result"},
	)
	queryRowsTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "llmquery_query_rows_truncated_total",
			Help: "Queries whose result exceeded the row cap.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		generationsTotal,
		validationRejectionsTotal,
		llmRequestDurationMs,
		llmCacheLookupsTotal,
		llmTokensTotal,
		queryDurationMs,
		queryRowsTruncatedTotal,
	)
}

func ObserveGeneration(outcome string) {
	generationsTotal.WithLabelValues(outcome).Inc()
}

func IncrementValidationRejection(path string) {
	validationRejectionsTotal.WithLabelValues(path).Inc()
}

func ObserveLLMRequest(status string, elapsed time.Duration) {
	llmRequestDurationMs.WithLabelValues(status).Observe(float64(elapsed.Milliseconds()))
}

func ObserveCacheLookup(hit bool) {
	if hit {
		llmCacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	llmCacheLookupsTotal.WithLabelValues("miss").Inc()
}

func AddLLMTokens(prompt, completion int) {
	if prompt > 0 {
		llmTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	}
	if completion > 0 {
		llmTokensTotal.WithLabelValues("completion").Add(float64(completion))
	}
}

func ObserveQuery(err error, elapsed time.Duration, truncated bool) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	queryDurationMs.WithLabelValues(result).Observe(float64(elapsed.Milliseconds()))
	if truncated {
		queryRowsTruncatedTotal.Inc()
	}
}
