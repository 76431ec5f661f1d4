// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedTotal tracks notifications successfully handed to the broker.
	PublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stagegate",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total number of egress notifications published",
	})

	// PublishErrorsTotal tracks publish failures by stage.
	PublishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagegate",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Total number of egress notification publish errors",
	}, []string{"stage"}) // stage: "marshal", "send"
)
