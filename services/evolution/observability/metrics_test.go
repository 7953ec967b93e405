// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSafety(t *testing.T) {
	// Embedded use runs without InitMetrics; every helper must be a no-op on
	// a nil receiver.
	var m *EvolutionMetrics
	m.RecordRoute("exp-1", "A")
	m.RecordObservation("exp-1", "revenue")
	m.RecordStart()
	m.RecordCompletion(true)
}

func TestInitMetrics_Idempotent(t *testing.T) {
	first := InitMetrics()
	second := InitMetrics()
	require.NotNil(t, first)
	assert.Same(t, first, second)
}

func TestRecordLifecycle(t *testing.T) {
	m := InitMetrics()

	before := testutil.ToFloat64(m.ExperimentsActive)
	m.RecordStart()
	assert.Equal(t, before+1, testutil.ToFloat64(m.ExperimentsActive))

	promotionsBefore := testutil.ToFloat64(m.PromotionsTotal)
	m.RecordCompletion(true)
	assert.Equal(t, before, testutil.ToFloat64(m.ExperimentsActive))
	assert.Equal(t, promotionsBefore+1, testutil.ToFloat64(m.PromotionsTotal))

	m.RecordStart()
	m.RecordCompletion(false)
	assert.Equal(t, promotionsBefore+1, testutil.ToFloat64(m.PromotionsTotal),
		"inconclusive completion does not count a promotion")
}

func TestRecordCounters(t *testing.T) {
	m := InitMetrics()

	m.RecordRoute("exp-counters", "B")
	m.RecordRoute("exp-counters", "B")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RouteDecisionsTotal.WithLabelValues("exp-counters", "B")))

	m.RecordObservation("exp-counters", "revenue")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObservationsTotal.WithLabelValues("exp-counters", "revenue")))
}
