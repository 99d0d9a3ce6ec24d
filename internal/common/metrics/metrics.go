// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_runs_started_total",
			Help: "Total number of automation runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_runs_completed_total",
			Help: "Total number of automation runs completed, by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_run_duration_seconds",
			Help: "Duration of a full automation run in seconds",
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_submissions_total",
			Help: "Total candidate submissions processed, by terminal state",
		},
		[]string{"state"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_submission_duration_seconds",
			Help: "Duration of a single candidate submission in seconds",
		},
	)

	OracleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_oracle_failures_total",
			Help: "Total scoring oracle calls that failed or returned invalid scores",
		},
	)

	QuotaExhaustions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_quota_exhaustions_total",
			Help: "Total triggers refused because the quota window was exhausted",
		},
	)

	BreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_breaker_trips_total",
			Help: "Total candidates short-circuited by an open circuit breaker",
		},
	)
)
