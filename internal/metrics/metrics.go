// Package metrics exposes the checkout pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "checkout"

var (
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "attempts_total",
		Help:      "Payment attempts by method and outcome kind",
	}, []string{"method", "outcome"})

	AdapterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "adapter_duration_seconds",
		Help:      "Time spent inside a payment adapter",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	FinalizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "order",
		Name:      "finalizations_total",
		Help:      "Order-creation calls by method and journal status",
	}, []string{"method", "status"})

	UnsettledFinalizations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "unsettled_finalizations",
		Help:      "Finalizations found without a confirmed order on the last reconciliation pass",
	})

	ReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "resolved_total",
		Help:      "Finalizations resolved by the reconciliation worker",
	}, []string{"status"})
)
