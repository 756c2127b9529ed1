package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const metricsNamespace = "routes_service"

// Breaker call outcomes
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeRejected = "rejected"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_open",
		Help:      "Breaker position per upstream: 0 closed, 0.5 probing, 1 open.",
	}, []string{"breaker"})

	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_calls_total",
		Help:      "Upstream calls routed through a breaker, by outcome. Rejected calls never reached the upstream.",
	}, []string{"breaker", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes.",
	}, []string{"breaker", "from", "to"})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "retry",
		Name:      "attempts_total",
		Help:      "Single attempts of retried store and upstream operations.",
	}, []string{"operation", "outcome"})

	retryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "retry",
		Name:      "operation_seconds",
		Help:      "Wall time of a retried operation across all of its attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation", "outcome"})

	retryAttemptsUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "retry",
		Name:      "attempts_used",
		Help:      "Attempts spent before an operation settled.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	}, []string{"operation", "outcome"})

	retryBackoff = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "retry",
		Name:      "backoff_seconds",
		Help:      "Sleep between two attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"operation"})

	unnamedBreakers uint64
)

func nextBreakerName(base string) string {
	if base != "" {
		return base
	}
	return "upstream-" + strconv.FormatUint(atomic.AddUint64(&unnamedBreakers, 1), 10)
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func outcome(success bool) string {
	if success {
		return outcomeSuccess
	}
	return outcomeFailure
}

func recordBreakerState(name string, state gobreaker.State) {
	breakerState.WithLabelValues(name).Set(breakerStateValue(state))
}

func recordBreakerStateChange(name string, from, to gobreaker.State) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	recordBreakerState(name, to)
}

func recordBreakerCall(name, result string) {
	breakerCalls.WithLabelValues(name, result).Inc()
}

// RecordRetryAttempt counts one attempt of operation
func RecordRetryAttempt(operation string, success bool) {
	retryAttempts.WithLabelValues(operation, outcome(success)).Inc()
}

// RecordRetryOperation records how long operation took and how many attempts it used
func RecordRetryOperation(operation string, durationSeconds float64, attempts int, success bool) {
	result := outcome(success)
	retryDuration.WithLabelValues(operation, result).Observe(durationSeconds)
	retryAttemptsUsed.WithLabelValues(operation, result).Observe(float64(attempts))
}

// RecordRetryBackoff records one backoff sleep of operation
func RecordRetryBackoff(operation string, durationSeconds float64) {
	retryBackoff.WithLabelValues(operation).Observe(durationSeconds)
}
