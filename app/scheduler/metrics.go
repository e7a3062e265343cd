package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/middleware"
)

var (
	// Poll loop iterations
	pollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "polls_total",
			Help:      "Total number of scheduler poll iterations",
		},
	)

	pollErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "poll_errors_total",
			Help:      "Total number of scheduler polls that failed to list due campaigns",
		},
	)

	// Occurrences fully dispatched and advanced
	occurrencesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "occurrences_dispatched_total",
			Help:      "Total number of campaign occurrences dispatched and advanced",
		},
	)

	// Per-recipient send attempts partitioned by outcome
	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "sends_total",
			Help:      "Total number of per-recipient send attempts by status",
		},
		[]string{"status"},
	)
)
