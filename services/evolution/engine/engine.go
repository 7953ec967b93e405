// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine orchestrates configuration experiments.
//
// The engine composes the variation generator, traffic router, metrics
// service and configuration store into the experiment lifecycle:
//
//	building -> active -> completed
//
// Building loads the base document, derives variants and registers the
// traffic split atomically. During the active phase external callers drive
// Route and TrackObservation; the engine only exposes the experiment for
// inspection. Completion is caller-triggered once the advisory duration has
// elapsed (the engine runs no internal timer) and is idempotent per
// experiment identity.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianEvolve/pkg/validation"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/metrics"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/observability"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routing"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/store"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/variation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Defaults for experiment construction and winner selection.
const (
	// DefaultControlTraffic is the control's traffic share. The control
	// carries the majority so untested variants cannot destabilize the live
	// system; generated variants split the remainder evenly.
	DefaultControlTraffic = 80.0

	// DefaultImprovementThreshold is the minimum relative improvement over
	// control a variant must show to win.
	DefaultImprovementThreshold = 0.02

	// MaxVariantCount caps generated variants per experiment. Variant ids
	// are single letters with "A" reserved for control.
	MaxVariantCount = 25
)

// Engine errors.
var (
	// ErrUnknownExperiment indicates the experiment id is not known.
	ErrUnknownExperiment = errors.New("unknown experiment")

	// ErrUnknownVariant indicates the variant id does not belong to the
	// experiment.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrTooManyVariants indicates the requested variant count exceeds
	// MaxVariantCount.
	ErrTooManyVariants = errors.New("variant count exceeds maximum")

	// ErrInvalidDuration indicates a non-positive experiment duration.
	ErrInvalidDuration = errors.New("duration hours must be positive")
)

// experimentState is the engine's record of one experiment. The outcome is
// recorded exactly once; repeat completions return it unchanged.
type experimentState struct {
	exp     datatypes.Experiment
	outcome *datatypes.ExperimentOutcome
}

// Engine owns experiment lifecycle transitions. Routing and tracking reads
// flow through to the router and metrics service, which handle their own
// concurrency; lifecycle transitions are serialized by the engine mutex.
type Engine struct {
	store     store.ConfigStore
	router    *routing.Router
	metrics   *metrics.Service
	logger    *slog.Logger
	clock     func() time.Time
	threshold float64
	control   float64

	mu          sync.Mutex
	generator   *variation.Generator
	experiments map[string]*experimentState
}

// Option configures the engine.
type Option func(*Engine)

// WithClock replaces the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithSeed seeds the variation generator, making variant construction
// reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.generator = variation.NewGenerator(seed)
	}
}

// WithImprovementThreshold overrides the winner-selection threshold.
func WithImprovementThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// WithControlTraffic overrides the control's traffic percentage. Must leave
// room for at least one variant.
func WithControlTraffic(pct float64) Option {
	return func(e *Engine) {
		if pct > 0 && pct < 100 {
			e.control = pct
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine over the given collaborators.
func New(cfgStore store.ConfigStore, router *routing.Router, metricsSvc *metrics.Service, opts ...Option) *Engine {
	e := &Engine{
		store:       cfgStore,
		router:      router,
		metrics:     metricsSvc,
		logger:      slog.Default(),
		clock:       time.Now,
		threshold:   DefaultImprovementThreshold,
		control:     DefaultControlTraffic,
		generator:   variation.NewGeneratorFromSource(rand.NewSource(time.Now().UnixNano())),
		experiments: make(map[string]*experimentState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// Building
// =============================================================================

// StartExperiment loads the named document, derives up to variantCount
// variants, registers the traffic split and activates the experiment.
//
// The control variant "A" always exists, is never mutated, and receives the
// configured majority share; generated variants split the remainder evenly.
// The generator may yield fewer variants than requested when operation kinds
// are structurally inapplicable; with no variants at all the control takes
// 100% and the experiment degenerates to a no-op comparison.
//
// Failures here are fatal to the attempt and leave no partial registration.
func (e *Engine) StartExperiment(ctx context.Context, documentName string, variantCount int, durationHours float64) (datatypes.Experiment, error) {
	_, span := otel.Tracer("evolution").Start(ctx, "engine.StartExperiment",
		trace.WithAttributes(
			attribute.String("document", documentName),
			attribute.Int("variant_count", variantCount),
		),
	)
	defer span.End()

	name, err := validation.SanitizeName(documentName)
	if err != nil {
		return datatypes.Experiment{}, err
	}
	if variantCount < 0 {
		return datatypes.Experiment{}, variation.ErrNegativeCount
	}
	if variantCount > MaxVariantCount {
		return datatypes.Experiment{}, fmt.Errorf("%w: %d > %d", ErrTooManyVariants, variantCount, MaxVariantCount)
	}
	if durationHours <= 0 {
		return datatypes.Experiment{}, ErrInvalidDuration
	}

	doc, err := e.store.Load(ctx, name)
	if err != nil {
		return datatypes.Experiment{}, fmt.Errorf("load document %s: %w", name, err)
	}
	if err := doc.Validate(); err != nil {
		return datatypes.Experiment{}, fmt.Errorf("document %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ops, err := e.generator.Generate(doc, variantCount)
	if err != nil {
		return datatypes.Experiment{}, err
	}

	now := e.clock()
	variants, err := e.buildVariants(doc, ops, now)
	if err != nil {
		return datatypes.Experiment{}, err
	}

	exp := datatypes.Experiment{
		ID:            uuid.NewString(),
		DocumentName:  name,
		Variants:      variants,
		FitnessMetric: doc.FitnessMetricName(),
		DurationHours: durationHours,
		Status:        datatypes.StatusActive,
		StartedAt:     now,
	}

	if err := e.router.Register(exp); err != nil {
		return datatypes.Experiment{}, fmt.Errorf("register experiment: %w", err)
	}

	e.experiments[exp.ID] = &experimentState{exp: exp}
	observability.DefaultMetrics.RecordStart()

	e.logger.Info("experiment started",
		"experiment_id", exp.ID,
		"document", name,
		"variants", len(variants),
		"duration_hours", durationHours,
	)
	return snapshotExperiment(exp), nil
}

// buildVariants assembles the control plus one variant per operation.
func (e *Engine) buildVariants(doc datatypes.ConfigurationDocument, ops []datatypes.VariationOperation, now time.Time) ([]datatypes.Variant, error) {
	controlShare := e.control
	if len(ops) == 0 {
		controlShare = 100
	}

	variants := make([]datatypes.Variant, 0, len(ops)+1)
	variants = append(variants, datatypes.Variant{
		ID:                datatypes.ControlVariantID,
		Fingerprint:       variation.Fingerprint(doc),
		Document:          doc.Clone(),
		TrafficPercentage: controlShare,
	})

	if len(ops) == 0 {
		return variants, nil
	}

	share := (100 - controlShare) / float64(len(ops))
	for i, op := range ops {
		mutated, err := variation.Apply(doc, op, now)
		if err != nil {
			return nil, fmt.Errorf("apply operation %s: %w", op.OperationID, err)
		}
		variants = append(variants, datatypes.Variant{
			ID:                variantLabel(i),
			Fingerprint:       variation.Fingerprint(mutated),
			Document:          mutated,
			TrafficPercentage: share,
		})
	}
	return variants, nil
}

// variantLabel returns "B", "C", ... for generated variant index 0, 1, ...
func variantLabel(i int) string {
	return string(rune('B' + i))
}

// =============================================================================
// Active phase
// =============================================================================

// Route assigns the caller to a variant of the experiment. Pure read path;
// see the routing package for the determinism contract.
func (e *Engine) Route(callerID, experimentID string) (string, error) {
	variantID, err := e.router.Route(callerID, experimentID)
	if err != nil {
		return "", err
	}
	observability.DefaultMetrics.RecordRoute(experimentID, variantID)
	return variantID, nil
}

// TrackObservation appends one metric observation for a variant. The
// experiment and variant must be known; anything else is a validation error
// that leaves no metrics trace.
func (e *Engine) TrackObservation(experimentID, variantID, metric string, value float64) error {
	e.mu.Lock()
	state, ok := e.experiments[experimentID]
	variantOK := ok && state.exp.Variant(variantID) != nil
	e.mu.Unlock()

	if !ok {
		return ErrUnknownExperiment
	}
	if !variantOK {
		return ErrUnknownVariant
	}

	e.metrics.Track(experimentID, variantID, metric, value)
	observability.DefaultMetrics.RecordObservation(experimentID, metric)
	return nil
}

// GetExperiment returns a snapshot of the experiment for inspection.
func (e *Engine) GetExperiment(experimentID string) (datatypes.Experiment, error) {
	exp, ok := e.snapshot(experimentID)
	if !ok {
		return datatypes.Experiment{}, ErrUnknownExperiment
	}
	return exp, nil
}

func (e *Engine) snapshot(experimentID string) (datatypes.Experiment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.experiments[experimentID]
	if !ok {
		return datatypes.Experiment{}, false
	}
	return snapshotExperiment(state.exp), true
}

// snapshotExperiment deep-copies an experiment so callers cannot mutate
// engine state through the returned value.
func snapshotExperiment(exp datatypes.Experiment) datatypes.Experiment {
	out := exp
	out.Variants = make([]datatypes.Variant, len(exp.Variants))
	for i, v := range exp.Variants {
		cv := v
		cv.Document = v.Document.Clone()
		if v.FitnessScore != nil {
			score := *v.FitnessScore
			cv.FitnessScore = &score
		}
		out.Variants[i] = cv
	}
	if exp.CompletedAt != nil {
		completed := *exp.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// =============================================================================
// Completion
// =============================================================================

// CompleteExperiment evaluates fitness for every variant, applies the
// winner-selection rule and, on a clear winner, promotes its document as the
// next generation via the configuration store.
//
// The winner is the highest-fitness non-control variant whose relative
// improvement over control exceeds the threshold. No qualifying variant, or
// a control fitness of zero (nothing to compare against), yields an
// inconclusive outcome with the control retained; that is a result, not an
// error.
//
// Completion is idempotent by experiment identity: once an outcome is
// recorded, repeat calls return it without recomputing or re-persisting. A
// persistence failure is surfaced verbatim with no outcome recorded, so the
// caller can retry safely.
func (e *Engine) CompleteExperiment(ctx context.Context, experimentID string) (datatypes.ExperimentOutcome, error) {
	_, span := otel.Tracer("evolution").Start(ctx, "engine.CompleteExperiment",
		trace.WithAttributes(attribute.String("experiment_id", experimentID)),
	)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.experiments[experimentID]
	if !ok {
		return datatypes.ExperimentOutcome{}, ErrUnknownExperiment
	}
	if state.outcome != nil {
		return *state.outcome, nil
	}

	// Pull fitness for every variant. Variants without observations score 0
	// and simply cannot win.
	for i := range state.exp.Variants {
		score := e.metrics.Fitness(experimentID, state.exp.Variants[i].ID)
		state.exp.Variants[i].FitnessScore = &score
	}

	if state.exp.Status != datatypes.StatusCompleted {
		state.exp.Status = datatypes.StatusCompleted
		now := e.clock()
		state.exp.CompletedAt = &now
	}

	winner := e.selectWinner(&state.exp)
	if winner == nil {
		outcome := datatypes.ExperimentOutcome{Promoted: false}
		state.outcome = &outcome
		observability.DefaultMetrics.RecordCompletion(false)
		e.logger.Info("experiment inconclusive, control retained",
			"experiment_id", experimentID)
		return outcome, nil
	}

	suffix := fmt.Sprintf("gen%d", winner.Document.Generation())
	location, err := e.store.Persist(ctx, state.exp.DocumentName, suffix, winner.Document)
	if err != nil {
		// No outcome recorded: a retry recomputes the same winner and
		// retries the write.
		e.logger.Error("promotion persist failed",
			"experiment_id", experimentID,
			"winner", winner.ID,
			"error", err,
		)
		return datatypes.ExperimentOutcome{}, fmt.Errorf("persist promoted document: %w", err)
	}

	outcome := datatypes.ExperimentOutcome{
		WinnerID: winner.ID,
		Promoted: true,
		Location: location,
	}
	state.outcome = &outcome
	observability.DefaultMetrics.RecordCompletion(true)

	e.logger.Info("variant promoted",
		"experiment_id", experimentID,
		"winner", winner.ID,
		"generation", winner.Document.Generation(),
		"location", location,
	)
	return outcome, nil
}

// selectWinner applies the winner-selection rule against the experiment's
// populated fitness scores. Returns nil when no variant qualifies.
func (e *Engine) selectWinner(exp *datatypes.Experiment) *datatypes.Variant {
	control := exp.Control()
	if control == nil || control.FitnessScore == nil {
		return nil
	}
	controlFitness := *control.FitnessScore
	if controlFitness == 0 {
		// Nothing to compare against; all-zero results are inconclusive.
		return nil
	}

	var best *datatypes.Variant
	for i := range exp.Variants {
		v := &exp.Variants[i]
		if v.ID == datatypes.ControlVariantID || v.FitnessScore == nil {
			continue
		}
		if best == nil || *v.FitnessScore > *best.FitnessScore {
			best = v
		}
	}
	if best == nil {
		return nil
	}

	improvement := (*best.FitnessScore - controlFitness) / controlFitness
	if improvement <= e.threshold {
		return nil
	}
	return best
}
