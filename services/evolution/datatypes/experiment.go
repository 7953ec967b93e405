// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ControlVariantID is reserved for the unmodified control document. The
// control always exists and is never mutated.
const ControlVariantID = "A"

// ErrTrafficSum indicates variant traffic percentages do not sum to 100.
var ErrTrafficSum = errors.New("variant traffic percentages must sum to 100")

// trafficEpsilon absorbs float accumulation error when validating the sum.
const trafficEpsilon = 1e-6

// =============================================================================
// Variation Operations
// =============================================================================

// OperationKind identifies one category of structural edit. The set is
// closed: the variation generator selects uniformly over AllOperationKinds.
type OperationKind string

const (
	// KindPersonaEdit rewrites a role persona or rule string.
	KindPersonaEdit OperationKind = "persona_edit"

	// KindToolSwap changes a tool parameter.
	KindToolSwap OperationKind = "tool_swap"

	// KindWorkflowReorder swaps the order of two workflow steps.
	KindWorkflowReorder OperationKind = "workflow_reorder"

	// KindSkillSwap substitutes a named skill reference.
	KindSkillSwap OperationKind = "skill_swap"

	// KindTeamEdit clones a role into a new team member.
	KindTeamEdit OperationKind = "team_edit"
)

// AllOperationKinds lists every operation kind in selection order.
var AllOperationKinds = []OperationKind{
	KindPersonaEdit,
	KindToolSwap,
	KindWorkflowReorder,
	KindSkillSwap,
	KindTeamEdit,
}

// IsValid reports whether k is a known operation kind.
func (k OperationKind) IsValid() bool {
	for _, known := range AllOperationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// VariationOperation is a named, reproducible edit over a configuration
// document. All randomized choices (which element, which replacement) are
// resolved at generation time and captured in the fields below, so applying
// the same operation to the same document always yields the same result.
type VariationOperation struct {
	OperationID string        `json:"operation_id"`
	Kind        OperationKind `json:"kind"`
	Description string        `json:"description"`

	// TargetIndex selects the element the edit acts on (rule, tool, step,
	// skill, or role index depending on Kind).
	TargetIndex int `json:"target_index"`

	// SwapIndex is the second element for KindWorkflowReorder.
	SwapIndex int `json:"swap_index,omitempty"`

	// Replacement carries the new value: rule text, skill name, or cloned
	// role name depending on Kind.
	Replacement string `json:"replacement,omitempty"`

	// ParamKey and ParamValue carry the parameter change for KindToolSwap.
	ParamKey   string `json:"param_key,omitempty"`
	ParamValue string `json:"param_value,omitempty"`
}

// =============================================================================
// Variants and Experiments
// =============================================================================

// Variant is one candidate under test. Fingerprint is a content hash of the
// full document used for routing identity and lineage display, not equality.
type Variant struct {
	ID                string                `json:"id"`
	Fingerprint       string                `json:"fingerprint"`
	Document          ConfigurationDocument `json:"document"`
	TrafficPercentage float64               `json:"traffic_percentage"`
	FitnessScore      *float64              `json:"fitness_score,omitempty"`
}

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	// StatusActive means the experiment is registered and receiving traffic.
	StatusActive ExperimentStatus = "active"

	// StatusCompleted means fitness has been evaluated. Terminal.
	StatusCompleted ExperimentStatus = "completed"
)

// IsValid reports whether s is a known experiment status.
func (s ExperimentStatus) IsValid() bool {
	return s == StatusActive || s == StatusCompleted
}

// Experiment binds an experiment id, the originating document, the ordered
// variant list, and the optimization window. Immutable once registered with
// the router; changing a traffic split requires a new experiment.
type Experiment struct {
	ID            string           `json:"id"`
	DocumentName  string           `json:"document_name"`
	Variants      []Variant        `json:"variants"`
	FitnessMetric string           `json:"fitness_metric"`
	DurationHours float64          `json:"duration_hours"`
	Status        ExperimentStatus `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// ValidateTraffic checks that the variant percentages sum to 100 within a
// small epsilon. Registration must reject anything else outright.
func (e *Experiment) ValidateTraffic() error {
	var sum float64
	for _, v := range e.Variants {
		sum += v.TrafficPercentage
	}
	if math.Abs(sum-100) > trafficEpsilon {
		return fmt.Errorf("%w: got %.4f", ErrTrafficSum, sum)
	}
	return nil
}

// Variant returns the variant with the given id, or nil if absent.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// Control returns the control variant, or nil for a malformed experiment.
func (e *Experiment) Control() *Variant {
	return e.Variant(ControlVariantID)
}

// ExperimentOutcome is the result of completing an experiment. Promoted is
// false with an empty WinnerID when no variant cleared the improvement
// threshold; that is a normal result, not an error.
type ExperimentOutcome struct {
	WinnerID string `json:"winner_id,omitempty"`
	Promoted bool   `json:"promoted"`
	Location string `json:"location,omitempty"`
}
