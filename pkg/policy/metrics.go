// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTotal tracks policy document reconciliations by operation and
	// outcome.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagegate",
		Subsystem: "policy",
		Name:      "reconcile_total",
		Help:      "Total number of bucket policy reconciliations",
	}, []string{"op", "outcome"})
)
