// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the data contracts for the evolution service.
//
// A ConfigurationDocument describes an agent team: who the agents are, the
// rules they follow, the tools and skills they may use, and the workflow they
// execute. Documents are the unit of optimization; everything else in this
// package exists to describe one experiment over one document lineage.
package datatypes

import (
	"errors"
	"time"
)

// Validation errors returned by ConfigurationDocument.Validate.
var (
	// ErrEmptyName indicates the document has no name.
	ErrEmptyName = errors.New("document name must not be empty")

	// ErrNoRoles indicates the document defines no agent roles.
	ErrNoRoles = errors.New("document must define at least one role")
)

// RoleAssignment binds an agent role to its persona description.
type RoleAssignment struct {
	Name    string `json:"name"`
	Persona string `json:"persona"`
}

// ToolRef names a tool an agent team may invoke, with optional parameters.
type ToolRef struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// WorkflowStep is one ordered step in the team workflow. Role is the name of
// the RoleAssignment responsible for the step; it may be empty for shared steps.
type WorkflowStep struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// MutationRecord is one append-only lineage entry describing the edit that
// produced this document from its parent. Only promoted documents persist, so
// rejected variants leave no durable trace.
type MutationRecord struct {
	OperationID string    `json:"operation_id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// EvolutionState carries the lineage metadata of a document that has passed
// through at least one experiment.
//
// Generation increases by exactly 1 per promotion. ParentFingerprint is the
// content hash of the immediate ancestor and exists for human-auditable
// lineage trails only; it is never used for equality checks.
type EvolutionState struct {
	Generation        int              `json:"generation"`
	ParentFingerprint string           `json:"parent_fingerprint,omitempty"`
	FitnessMetric     string           `json:"fitness_metric,omitempty"`
	MutationHistory   []MutationRecord `json:"mutation_history,omitempty"`
}

// ConfigurationDocument is the versioned artifact under optimization.
//
// The durable owner is the configuration store; in-memory copies are owned by
// whichever component holds them. Use Clone before mutating a shared copy.
type ConfigurationDocument struct {
	Name      string           `json:"name"`
	Roles     []RoleAssignment `json:"roles"`
	Rules     []string         `json:"rules,omitempty"`
	Tools     []ToolRef        `json:"tools,omitempty"`
	Workflow  []WorkflowStep   `json:"workflow,omitempty"`
	Skills    []string         `json:"skills,omitempty"`
	Evolution *EvolutionState  `json:"evolution,omitempty"`
}

// Validate reports whether the document is well-formed enough to experiment
// on. A document needs a name and at least one role; rules, tools, workflow
// and skills may all be empty (the variation generator degrades gracefully).
func (d *ConfigurationDocument) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if len(d.Roles) == 0 {
		return ErrNoRoles
	}
	return nil
}

// DefaultFitnessMetric labels the shipped fitness reduction. The label
// identifies what an experiment optimizes; it does not parameterize the
// computation.
const DefaultFitnessMetric = "net_revenue"

// FitnessMetricName returns the metric this document's lineage optimizes,
// falling back to DefaultFitnessMetric for documents without lineage state.
func (d *ConfigurationDocument) FitnessMetricName() string {
	if d.Evolution == nil || d.Evolution.FitnessMetric == "" {
		return DefaultFitnessMetric
	}
	return d.Evolution.FitnessMetric
}

// Generation returns the document's current generation, 0 for documents that
// have never been promoted.
func (d *ConfigurationDocument) Generation() int {
	if d.Evolution == nil {
		return 0
	}
	return d.Evolution.Generation
}

// Clone returns a deep copy of the document. The copy shares no mutable state
// with the receiver, so callers can retain the pre-image for lineage
// comparison while an operation is applied to the copy.
func (d *ConfigurationDocument) Clone() ConfigurationDocument {
	out := ConfigurationDocument{
		Name: d.Name,
	}
	if d.Roles != nil {
		out.Roles = make([]RoleAssignment, len(d.Roles))
		copy(out.Roles, d.Roles)
	}
	if d.Rules != nil {
		out.Rules = make([]string, len(d.Rules))
		copy(out.Rules, d.Rules)
	}
	if d.Tools != nil {
		out.Tools = make([]ToolRef, len(d.Tools))
		for i, t := range d.Tools {
			ct := ToolRef{Name: t.Name}
			if t.Params != nil {
				ct.Params = make(map[string]string, len(t.Params))
				for k, v := range t.Params {
					ct.Params[k] = v
				}
			}
			out.Tools[i] = ct
		}
	}
	if d.Workflow != nil {
		out.Workflow = make([]WorkflowStep, len(d.Workflow))
		copy(out.Workflow, d.Workflow)
	}
	if d.Skills != nil {
		out.Skills = make([]string, len(d.Skills))
		copy(out.Skills, d.Skills)
	}
	if d.Evolution != nil {
		ev := EvolutionState{
			Generation:        d.Evolution.Generation,
			ParentFingerprint: d.Evolution.ParentFingerprint,
			FitnessMetric:     d.Evolution.FitnessMetric,
		}
		if d.Evolution.MutationHistory != nil {
			ev.MutationHistory = make([]MutationRecord, len(d.Evolution.MutationHistory))
			copy(ev.MutationHistory, d.Evolution.MutationHistory)
		}
		out.Evolution = &ev
	}
	return out
}
