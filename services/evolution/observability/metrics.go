// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the evolution
// service: routing decision counters, observation tracking counters, and
// experiment lifecycle gauges.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	subsystem        = "evolution"
)

// EvolutionMetrics holds all Prometheus metrics for experiment operations.
type EvolutionMetrics struct {
	// RouteDecisionsTotal counts routing decisions by experiment and variant.
	RouteDecisionsTotal *prometheus.CounterVec

	// ObservationsTotal counts tracked observations by experiment and metric
	// name.
	ObservationsTotal *prometheus.CounterVec

	// ExperimentsActive tracks the number of currently active experiments.
	ExperimentsActive prometheus.Gauge

	// ExperimentsCompletedTotal counts completed experiments by outcome
	// (promoted, inconclusive).
	ExperimentsCompletedTotal *prometheus.CounterVec

	// PromotionsTotal counts winning variants written as new generations.
	PromotionsTotal prometheus.Counter
}

// DefaultMetrics is the process-wide metrics instance, populated by
// InitMetrics. Nil until initialized; the Record helpers are nil-safe so
// embedded use without metrics stays cheap.
var DefaultMetrics *EvolutionMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance. Safe
// to call more than once; registration happens only on the first call.
func InitMetrics() *EvolutionMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &EvolutionMetrics{
			RouteDecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "route_decisions_total",
				Help:      "Routing decisions by experiment and chosen variant.",
			}, []string{"experiment", "variant"}),
			ObservationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "observations_total",
				Help:      "Tracked metric observations by experiment and metric name.",
			}, []string{"experiment", "metric"}),
			ExperimentsActive: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "experiments_active",
				Help:      "Number of currently active experiments.",
			}),
			ExperimentsCompletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "experiments_completed_total",
				Help:      "Completed experiments by outcome.",
			}, []string{"outcome"}),
			PromotionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "promotions_total",
				Help:      "Winning variants promoted to a new generation.",
			}),
		}
	})
	return DefaultMetrics
}

// RecordRoute increments the routing decision counter.
func (m *EvolutionMetrics) RecordRoute(experimentID, variantID string) {
	if m == nil {
		return
	}
	m.RouteDecisionsTotal.WithLabelValues(experimentID, variantID).Inc()
}

// RecordObservation increments the observation counter.
func (m *EvolutionMetrics) RecordObservation(experimentID, metric string) {
	if m == nil {
		return
	}
	m.ObservationsTotal.WithLabelValues(experimentID, metric).Inc()
}

// RecordStart increments the active experiment gauge.
func (m *EvolutionMetrics) RecordStart() {
	if m == nil {
		return
	}
	m.ExperimentsActive.Inc()
}

// RecordCompletion decrements the active gauge and counts the outcome.
func (m *EvolutionMetrics) RecordCompletion(promoted bool) {
	if m == nil {
		return
	}
	m.ExperimentsActive.Dec()
	outcome := "inconclusive"
	if promoted {
		outcome = "promoted"
		m.PromotionsTotal.Inc()
	}
	m.ExperimentsCompletedTotal.WithLabelValues(outcome).Inc()
}
