package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JudgeRequestsTotal counts calls to the judge service by operation and outcome.
	JudgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_judge_requests_total",
			Help: "Total number of requests made to the judge service",
		},
		[]string{"op", "outcome"},
	)

	// JudgeAwaitDuration tracks how long batches take to reach a final state.
	JudgeAwaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arena_judge_await_duration_seconds",
			Help:    "Time spent polling the judge until every execution is final",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
	)

	// SubmissionsTotal counts judged submissions by language and final status.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_submissions_total",
			Help: "Total number of judged submissions",
		},
		[]string{"language", "status"},
	)

	// RunsTotal counts ad-hoc runs by language and outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_runs_total",
			Help: "Total number of ad-hoc runs against visible test cases",
		},
		[]string{"language", "outcome"},
	)

	// AggregationFailures counts judged submissions whose results could not be saved.
	AggregationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_aggregation_failures_total",
			Help: "Judge results obtained but not persisted",
		},
	)

	// RateLimitRejections counts requests rejected by the admission controller.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_ratelimit_rejections_total",
			Help: "Requests rejected by the sliding-window rate limiter",
		},
		[]string{"policy"},
	)

	// EventsProcessed counts judged events folded by the worker, by outcome.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_worker_events_total",
			Help: "Total number of submission events processed by the worker",
		},
		[]string{"outcome"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)
)
