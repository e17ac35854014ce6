// Package metrics exposes Prometheus collectors for the launchpad core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the launchpad-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	txSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "tx",
			Name:      "submitted_total",
			Help:      "Total ledger write submissions.",
		},
		[]string{"role"},
	)

	txSubmitFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "tx",
			Name:      "submit_failed_total",
			Help:      "Total ledger write submissions that failed before tracking.",
		},
		[]string{"role"},
	)

	txConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "tx",
			Name:      "confirmed_total",
			Help:      "Total tracked transactions confirmed on-chain.",
		},
		[]string{"role"},
	)

	txReverted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "tx",
			Name:      "reverted_total",
			Help:      "Total tracked transactions that reverted on-chain.",
		},
		[]string{"role"},
	)

	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "poll",
			Name:      "attempts_total",
			Help:      "Total polling fetch attempts, by outcome.",
		},
		[]string{"source", "outcome"},
	)

	workflowSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "workflow",
			Name:      "steps_total",
			Help:      "Total workflow steps completed, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		txSubmitted,
		txSubmitFailed,
		txConfirmed,
		txReverted,
		pollAttempts,
		workflowSteps,
	)
}

func TxSubmitted(role string)        { txSubmitted.WithLabelValues(role).Inc() }
func TxSubmissionFailed(role string) { txSubmitFailed.WithLabelValues(role).Inc() }
func TxConfirmed(role string)        { txConfirmed.WithLabelValues(role).Inc() }
func TxReverted(role string)         { txReverted.WithLabelValues(role).Inc() }

// PollAttempt records one fetch attempt. Outcome is ok, transient, or fatal.
func PollAttempt(source, outcome string) { pollAttempts.WithLabelValues(source, outcome).Inc() }

// WorkflowStep records a completed step transition.
func WorkflowStep(kind, outcome string) { workflowSteps.WithLabelValues(kind, outcome).Inc() }

// Handler serves the launchpad registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
