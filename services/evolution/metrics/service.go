// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics accumulates per-variant observations during an experiment
// window and reduces them to a single comparable fitness score.
//
// Observations are append-only; ordering across callers is irrelevant because
// fitness only sums values. Experiments are short-lived, so unbounded
// accumulation within one experiment is acceptable.
package metrics

import (
	"sync"
	"time"
)

// Well-known metric names consumed by the default fitness reduction. Any
// other metric names are retained for inspection but not folded into the
// score.
const (
	MetricRevenue = "revenue"
	MetricCost    = "cost"
)

// Observation is a single tracked value.
type Observation struct {
	Metric string    `json:"metric"`
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

// FitnessFunc reduces per-metric sums to one score. The map holds the sum of
// every metric tracked for the variant.
type FitnessFunc func(sums map[string]float64) float64

// DefaultFitness is the shipped reduction: sum(revenue) - sum(cost).
//
// The experiment's fitness metric name labels what is being optimized but
// does not parameterize this computation; swap the FitnessFunc to change the
// rule.
func DefaultFitness(sums map[string]float64) float64 {
	return sums[MetricRevenue] - sums[MetricCost]
}

type variantKey struct {
	experimentID string
	variantID    string
}

// Service stores observations keyed by (experiment, variant).
//
// Thread Safety: safe for concurrent use. Track appends under a mutex so
// concurrent callers never lose updates.
type Service struct {
	mu      sync.Mutex
	obs     map[variantKey][]Observation
	fitness FitnessFunc
	now     func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithFitnessFunc replaces the default fitness reduction.
func WithFitnessFunc(fn FitnessFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.fitness = fn
		}
	}
}

// WithClock replaces the time source used to stamp observations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a metrics service with its own private state. State is
// per-instance rather than package-level so tests and tenants never share
// accumulators.
func NewService(opts ...Option) *Service {
	s := &Service{
		obs:     make(map[variantKey][]Observation),
		fitness: DefaultFitness,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track appends one observation for the (experiment, variant, metric) series.
func (s *Service) Track(experimentID, variantID, metric string, value float64) {
	key := variantKey{experimentID: experimentID, variantID: variantID}
	entry := Observation{Metric: metric, Value: value, At: s.now()}

	s.mu.Lock()
	s.obs[key] = append(s.obs[key], entry)
	s.mu.Unlock()
}

// Fitness reduces the variant's observations to a score. A variant with no
// observations scores 0; that is a valid result, not an error.
func (s *Service) Fitness(experimentID, variantID string) float64 {
	return s.fitness(s.Sums(experimentID, variantID))
}

// Sums returns the per-metric sums for a variant. The returned map is a
// fresh copy safe for the caller to hold.
func (s *Service) Sums(experimentID, variantID string) map[string]float64 {
	key := variantKey{experimentID: experimentID, variantID: variantID}
	sums := make(map[string]float64)

	s.mu.Lock()
	for _, o := range s.obs[key] {
		sums[o.Metric] += o.Value
	}
	s.mu.Unlock()
	return sums
}

// Count returns the number of observations recorded for a variant.
func (s *Service) Count(experimentID, variantID string) int {
	key := variantKey{experimentID: experimentID, variantID: variantID}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obs[key])
}

// Drop discards all observations for an experiment. Used when a completed
// experiment's bookkeeping is no longer needed.
func (s *Service) Drop(experimentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.obs {
		if key.experimentID == experimentID {
			delete(s.obs, key)
		}
	}
}
