// Package metrics exposes Prometheus instrumentation for the judging
// pipeline. All collectors are process-global and registered once.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsStarted counts analysis jobs by hackathon outcome path.
	JobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "jobs_started_total",
		Help:      "Analysis jobs started.",
	})

	// JobsFinished counts terminal jobs by status.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "jobs_finished_total",
		Help:      "Analysis jobs finished, by terminal status.",
	}, []string{"status"})

	// SubmissionsAnalyzed counts per-submission pipeline outcomes.
	SubmissionsAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "submissions_analyzed_total",
		Help:      "Submissions processed, by terminal status.",
	}, []string{"status"})

	// AgentInvocations counts judge runs by agent and outcome.
	AgentInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "agent_invocations_total",
		Help:      "Judge agent invocations, by agent and outcome.",
	}, []string{"agent", "outcome"})

	// TokensConsumed counts LLM tokens by model and direction.
	TokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "llm_tokens_total",
		Help:      "LLM tokens consumed, by model and direction (input/output).",
	}, []string{"model", "direction"})

	// CostUSD accumulates model spend by agent.
	CostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibejudge",
		Name:      "llm_cost_usd_total",
		Help:      "LLM spend in USD, by agent.",
	}, []string{"agent"})

	// ExtractDuration observes repository extraction wall time.
	ExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vibejudge",
		Name:      "extract_duration_seconds",
		Help:      "Repository extraction duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ConverseDuration observes model call latency by model.
	ConverseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibejudge",
		Name:      "converse_duration_seconds",
		Help:      "Model converse latency.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"model"})
)
