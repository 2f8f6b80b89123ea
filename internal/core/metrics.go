// AngelaMos | 2026
// metrics.go

package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "insurance"

var (
	txWaitTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "db",
		Name:      "tx_wait_timeouts_total",
		Help:      "Transactions that gave up waiting for a free slot.",
	})

	// LifecycleEvents counts domain state changes, labelled by entity and
	// the resulting status.
	LifecycleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "lifecycle",
		Name:      "events_total",
		Help:      "Policy, claim and payment state changes.",
	}, []string{"entity", "status"})
)

func RecordLifecycle(entity, status string) {
	LifecycleEvents.WithLabelValues(entity, status).Inc()
}
