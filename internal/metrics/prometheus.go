// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the recycling league backend.
var (
	// Counters.
	PointsMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_mutations_total",
			Help: "Total number of points ledger mutations",
		},
		[]string{"category", "operation"},
	)

	SessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_sessions_closed_total",
			Help: "Total number of league sessions closed",
		},
		[]string{"league", "status"},
	)

	MembersMovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_members_moved_total",
			Help: "Total members promoted, relegated or kept at session close",
		},
		[]string{"league", "movement"},
	)

	EnrollmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "league_enrollments_total",
			Help: "Total session enrollments",
		},
		[]string{"league"},
	)

	GoalsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goals_completed_total",
			Help: "Total goals that reached full progress",
		},
		[]string{"kind"},
	)

	GoalRolloversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goal_rollovers_total",
			Help: "Total goal rollover outcomes",
		},
		[]string{"outcome"},
	)

	StandingsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standings_cache_total",
			Help: "Standings cache lookups by result",
		},
		[]string{"result"},
	)

	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	// Gauges.
	OpenSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "open_league_sessions",
			Help: "Current number of open league sessions",
		},
		[]string{"league"},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last scheduler run",
		},
	)

	// Histograms.
	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Scheduler job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"job"},
	)

	SessionCloseMembers = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_close_members",
			Help:    "Number of members processed per session close",
			Buckets: prometheus.LinearBuckets(0, 10, 10), // 0 to 90 members
		},
		[]string{"league"},
	)
)

// RecordPointsMutation records a ledger mutation.
func RecordPointsMutation(category, operation string) {
	PointsMutationsTotal.WithLabelValues(category, operation).Inc()
}

// RecordSessionClosed records a session close attempt outcome.
func RecordSessionClosed(league, status string) {
	SessionsClosedTotal.WithLabelValues(league, status).Inc()
}

// RecordMemberMoved records a member's movement at session close.
func RecordMemberMoved(league, movement string) {
	MembersMovedTotal.WithLabelValues(league, movement).Inc()
}

// RecordEnrollment records a session enrollment.
func RecordEnrollment(league string) {
	EnrollmentsTotal.WithLabelValues(league).Inc()
}

// RecordGoalCompleted records a completed goal.
func RecordGoalCompleted(kind string) {
	GoalsCompletedTotal.WithLabelValues(kind).Inc()
}

// RecordGoalRollover records a goal rollover outcome.
func RecordGoalRollover(outcome string) {
	GoalRolloversTotal.WithLabelValues(outcome).Inc()
}

// RecordStandingsCache records a standings cache hit or miss.
func RecordStandingsCache(result string) {
	StandingsCacheTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// ObserveSchedulerJobDuration records a scheduler job duration.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// ObserveSessionCloseMembers records how many members a close processed.
func ObserveSessionCloseMembers(league string, count int) {
	SessionCloseMembers.WithLabelValues(league).Observe(float64(count))
}

// SetOpenSessions sets the open-session gauge for a league.
func SetOpenSessions(league string, count int) {
	OpenSessions.WithLabelValues(league).Set(float64(count))
}

// SetSchedulerLastRun updates the last-run timestamp to now.
func SetSchedulerLastRun() {
	SchedulerLastRunTimestamp.Set(float64(time.Now().Unix()))
}
