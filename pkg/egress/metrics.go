package egress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks lifecycle operations by name and outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagegate",
		Subsystem: "egress",
		Name:      "operations_total",
		Help:      "Total number of egress store lifecycle operations",
	}, []string{"op", "outcome"}) // outcome: "ok", error kind

	// SnapshotFailuresTotal tracks manifest capture failures.
	SnapshotFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stagegate",
		Subsystem: "egress",
		Name:      "snapshot_failures_total",
		Help:      "Total number of failed object manifest captures",
	})
)
