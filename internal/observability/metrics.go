package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	latencySeconds        *prometheus.HistogramVec
	errorsTotal           *prometheus.CounterVec
	sessionsStartedTotal  prometheus.Counter
	sessionsCompleted     prometheus.Counter
	regradesTotal         prometheus.Counter
	recordsGradedTotal    *prometheus.CounterVec
	aiScoringFailures     prometheus.Counter
	gradingEventsTotal    *prometheus.CounterVec
	questionStatsCacheHit *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "status"})

		sessionsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_sessions_started_total",
			Help: "Grading sessions created, first passes and regrades alike.",
		})

		sessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_sessions_completed_total",
			Help: "Grading sessions moved to COMPLETED.",
		})

		regradesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_regrades_total",
			Help: "Completed sessions superseded by a regrade.",
		})

		recordsGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_records_graded_total",
			Help: "Question grading records scored, by scoring method.",
		}, []string{"method"})

		aiScoringFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_ai_scoring_failures_total",
			Help: "AI-assisted scoring calls that failed or returned out-of-bound values.",
		})

		gradingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_events_published_total",
			Help: "Grading lifecycle events published to the message brokers.",
		}, []string{"type"})

		questionStatsCacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_question_stats_cache_total",
			Help: "Question statistics cache lookups by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			requestsTotal,
			latencySeconds,
			errorsTotal,
			sessionsStartedTotal,
			sessionsCompleted,
			regradesTotal,
			recordsGradedTotal,
			aiScoringFailures,
			gradingEventsTotal,
			questionStatsCacheHit,
		)
	})
}

// Requests exposes the counter for grading API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for grading API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for grading API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

func SessionsStarted() prometheus.Counter {
	RegisterMetrics()
	return sessionsStartedTotal
}

func SessionsCompleted() prometheus.Counter {
	RegisterMetrics()
	return sessionsCompleted
}

func Regrades() prometheus.Counter {
	RegisterMetrics()
	return regradesTotal
}

// RecordsGraded is labelled by scoring method (AUTO, MANUAL, AI_ASSISTED).
func RecordsGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return recordsGradedTotal
}

func AIScoringFailures() prometheus.Counter {
	RegisterMetrics()
	return aiScoringFailures
}

func GradingEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingEventsTotal
}

// QuestionStatsCache is labelled "hit" or "miss".
func QuestionStatsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return questionStatsCacheHit
}
