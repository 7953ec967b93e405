// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func experimentWithSplits(id string, splits map[string]float64, order ...string) datatypes.Experiment {
	exp := datatypes.Experiment{ID: id}
	for _, variantID := range order {
		exp.Variants = append(exp.Variants, datatypes.Variant{
			ID:                variantID,
			TrafficPercentage: splits[variantID],
		})
	}
	return exp
}

// =============================================================================
// Registration Tests
// =============================================================================

func TestRouter_Register_RejectsEmptyVariants(t *testing.T) {
	r := NewRouter()
	err := r.Register(datatypes.Experiment{ID: "exp-1"})
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestRouter_Register_RejectsBadTrafficSum(t *testing.T) {
	r := NewRouter()
	exp := experimentWithSplits("exp-1", map[string]float64{"A": 80, "B": 30}, "A", "B")

	err := r.Register(exp)
	assert.ErrorIs(t, err, datatypes.ErrTrafficSum)

	// Rejection leaves no partial registration behind.
	_, err = r.Route("caller-1", "exp-1")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRouter_Register_LastWriteWins(t *testing.T) {
	r := NewRouter()

	first := experimentWithSplits("exp-1", map[string]float64{"A": 100}, "A")
	require.NoError(t, r.Register(first))

	variantID, err := r.Route("caller-1", "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "A", variantID)

	// Re-register with everything on "B": the same caller must flip.
	second := experimentWithSplits("exp-1", map[string]float64{"B": 100}, "B")
	require.NoError(t, r.Register(second))

	variantID, err = r.Route("caller-1", "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "B", variantID)
}

func TestRouter_Unregister(t *testing.T) {
	r := NewRouter()
	exp := experimentWithSplits("exp-1", map[string]float64{"A": 100}, "A")
	require.NoError(t, r.Register(exp))

	r.Unregister("exp-1")
	_, err := r.Route("caller-1", "exp-1")
	assert.ErrorIs(t, err, ErrNotRegistered)

	// Unknown ids are a no-op.
	r.Unregister("never-registered")
}

// =============================================================================
// Routing Tests
// =============================================================================

func TestRouter_Route_UnknownExperiment(t *testing.T) {
	r := NewRouter()
	_, err := r.Route("caller-1", "missing")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRouter_Route_Deterministic(t *testing.T) {
	r := NewRouter()
	exp := experimentWithSplits("exp-1", map[string]float64{"A": 80, "B": 10, "C": 10}, "A", "B", "C")
	require.NoError(t, r.Register(exp))

	for i := 0; i < 50; i++ {
		callerID := fmt.Sprintf("caller-%d", i)

		first, err := r.Route(callerID, "exp-1")
		require.NoError(t, err)
		for j := 0; j < 20; j++ {
			again, err := r.Route(callerID, "exp-1")
			require.NoError(t, err)
			assert.Equal(t, first, again, "caller %s flapped between variants", callerID)
		}
	}
}

func TestRouter_Route_DistributionMatchesSplit(t *testing.T) {
	const callers = 100_000

	r := NewRouter()
	exp := experimentWithSplits("exp-1", map[string]float64{"A": 50, "B": 50}, "A", "B")
	require.NoError(t, r.Register(exp))

	counts := map[string]int{}
	for i := 0; i < callers; i++ {
		variantID, err := r.Route(fmt.Sprintf("caller-%d", i), "exp-1")
		require.NoError(t, err)
		counts[variantID]++
	}

	fracA := float64(counts["A"]) / callers * 100
	assert.InDelta(t, 50, fracA, 1.0, "50/50 split drifted: %v", counts)
}

func TestRouter_Route_ControlDominantSplit(t *testing.T) {
	const callers = 100_000

	r := NewRouter()
	exp := experimentWithSplits("exp-1", map[string]float64{"A": 80, "B": 10, "C": 10}, "A", "B", "C")
	require.NoError(t, r.Register(exp))

	counts := map[string]int{}
	for i := 0; i < callers; i++ {
		variantID, err := r.Route(fmt.Sprintf("user-%d@example.com", i), "exp-1")
		require.NoError(t, err)
		counts[variantID]++
	}

	assert.InDelta(t, 80, float64(counts["A"])/callers*100, 1.0)
	assert.InDelta(t, 10, float64(counts["B"])/callers*100, 1.0)
	assert.InDelta(t, 10, float64(counts["C"])/callers*100, 1.0)
}

func TestRouter_Route_ResidualRangeFallsToLastVariant(t *testing.T) {
	// Thirds leave the final cumulative bound fractionally under 100 before
	// pinning; every hash value must still resolve to some variant.
	r := NewRouter()
	exp := experimentWithSplits("exp-1",
		map[string]float64{"A": 80, "B": 20.0 / 3, "C": 20.0 / 3, "D": 20.0 / 3},
		"A", "B", "C", "D")
	require.NoError(t, r.Register(exp))

	for i := 0; i < 10_000; i++ {
		variantID, err := r.Route(fmt.Sprintf("caller-%d", i), "exp-1")
		require.NoError(t, err)
		assert.Contains(t, []string{"A", "B", "C", "D"}, variantID)
	}
}

func TestRouter_Route_IndependentExperiments(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Register(experimentWithSplits("exp-1", map[string]float64{"A": 100}, "A")))
	require.NoError(t, r.Register(experimentWithSplits("exp-2", map[string]float64{"B": 100}, "B")))

	v1, err := r.Route("caller-1", "exp-1")
	require.NoError(t, err)
	v2, err := r.Route("caller-1", "exp-2")
	require.NoError(t, err)

	assert.Equal(t, "A", v1)
	assert.Equal(t, "B", v2)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestRouter_ConcurrentRouteAndRegister(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Register(experimentWithSplits("exp-1", map[string]float64{"A": 80, "B": 20}, "A", "B")))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				variantID, err := r.Route(fmt.Sprintf("caller-%d-%d", g, i), "exp-1")
				assert.NoError(t, err)
				assert.Contains(t, []string{"A", "B"}, variantID)
			}
		}(g)
	}
	// Registrations of other experiments churn the snapshot concurrently.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("exp-churn-%d", i%10)
			assert.NoError(t, r.Register(experimentWithSplits(id, map[string]float64{"A": 100}, "A")))
		}
	}()
	wg.Wait()
}

// =============================================================================
// Hash Tests
// =============================================================================

func TestHashToPercent_Range(t *testing.T) {
	for i := 0; i < 10_000; i++ {
		v := hashToPercent(fmt.Sprintf("caller-%d", i))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 100.0)
	}
}

func TestHashToPercent_Stable(t *testing.T) {
	assert.Equal(t, hashToPercent("caller-42"), hashToPercent("caller-42"))

	// Distinct ids should spread; a handful of collisions is fine, a constant
	// hash is not.
	distinct := map[float64]struct{}{}
	for i := 0; i < 100; i++ {
		distinct[hashToPercent(fmt.Sprintf("caller-%d", i))] = struct{}{}
	}
	assert.Greater(t, len(distinct), 90)
}
