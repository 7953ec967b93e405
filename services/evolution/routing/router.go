// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing deterministically assigns caller identifiers to experiment
// variants.
//
// A caller id is hashed with FNV-1a into [0, 100) and walked against the
// experiment's cumulative traffic bounds, so a given caller sees one
// consistent variant for the life of a registration. Registrations are
// published as immutable snapshots; the route path reads a snapshot without
// locking, which keeps concurrent routing decisions independent.
package routing

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// Router errors.
var (
	// ErrNotRegistered indicates the experiment id has no registration.
	ErrNotRegistered = errors.New("experiment not registered")

	// ErrNoVariants indicates a registration attempt with an empty variant list.
	ErrNoVariants = errors.New("experiment has no variants")
)

// hashResolution gives two decimal digits over the [0, 100) range.
const hashResolution = 10000

// bucket is one variant's cumulative upper traffic bound.
type bucket struct {
	variantID string
	upper     float64
}

// registration is an immutable snapshot of one experiment's traffic split.
type registration struct {
	buckets []bucket
}

// Router maps caller identifiers to variants for registered experiments.
//
// Thread Safety: safe for concurrent use. Register publishes a complete new
// snapshot under a write lock; Route reads the current snapshot atomically
// and shares no per-call mutable state.
type Router struct {
	mu   sync.Mutex   // serializes Register
	snap atomic.Value // holds map[string]*registration
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	r := &Router{}
	r.snap.Store(map[string]*registration{})
	return r
}

// Register stores the experiment's variant list and cumulative traffic
// ranges keyed by experiment id. Re-registering an id replaces the previous
// registration outright (last write wins, no merge). The experiment's
// traffic percentages must sum to 100 or the registration is rejected with
// no state change.
func (r *Router) Register(exp datatypes.Experiment) error {
	if len(exp.Variants) == 0 {
		return ErrNoVariants
	}
	if err := exp.ValidateTraffic(); err != nil {
		return err
	}

	buckets := make([]bucket, len(exp.Variants))
	var cumulative float64
	for i, v := range exp.Variants {
		cumulative += v.TrafficPercentage
		buckets[i] = bucket{variantID: v.ID, upper: cumulative}
	}
	// Rounding can leave the final bound a hair under 100; pin it so the
	// residual range always resolves to the last variant.
	buckets[len(buckets)-1].upper = 100

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snap.Load().(map[string]*registration)
	next := make(map[string]*registration, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[exp.ID] = &registration{buckets: buckets}
	r.snap.Store(next)
	return nil
}

// Unregister removes an experiment's registration. Unknown ids are a no-op.
func (r *Router) Unregister(experimentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snap.Load().(map[string]*registration)
	if _, ok := current[experimentID]; !ok {
		return
	}
	next := make(map[string]*registration, len(current))
	for k, v := range current {
		if k != experimentID {
			next[k] = v
		}
	}
	r.snap.Store(next)
}

// Route returns the variant id assigned to the caller for the experiment.
//
// The assignment is a pure function of the caller id and the stored
// registration: repeated calls return the same variant until the experiment
// is re-registered. Returns ErrNotRegistered for unknown experiment ids.
func (r *Router) Route(callerID, experimentID string) (string, error) {
	snapshot := r.snap.Load().(map[string]*registration)
	reg, ok := snapshot[experimentID]
	if !ok {
		return "", ErrNotRegistered
	}

	value := hashToPercent(callerID)
	for _, b := range reg.buckets {
		if b.upper >= value {
			return b.variantID, nil
		}
	}
	// Unreachable once the last bound is pinned at 100, but fall back to the
	// last variant rather than failing the call.
	return reg.buckets[len(reg.buckets)-1].variantID, nil
}

// hashToPercent maps a caller id to [0, 100) with two decimal digits of
// resolution using FNV-1a, the same stable hash used for consistent
// assignment elsewhere in the system.
func hashToPercent(callerID string) float64 {
	h := fnv.New64a()
	h.Write([]byte(callerID))
	return float64(h.Sum64()%hashResolution) / 100.0
}
