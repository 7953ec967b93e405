// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package variation produces structural variations of configuration
// documents and applies them as pure, reproducible edits.
//
// Generation and application are separate contracts: Generate resolves every
// randomized choice into a VariationOperation, and Apply replays an operation
// deterministically against a document without mutating it.
package variation

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
	"github.com/google/uuid"
)

// ErrNegativeCount indicates a negative variation count was requested.
var ErrNegativeCount = errors.New("variation count must not be negative")

// personaEmphases are appended to a rule or persona when a persona edit
// fires. Kept short and generic so edited documents stay readable.
var personaEmphases = []string{
	"Prioritize clarity over speed.",
	"Double-check outputs before handing off.",
	"Prefer concise responses.",
	"Escalate ambiguous requests to the coordinator.",
}

// skillCatalog is the substitution pool for skill swaps.
var skillCatalog = []string{
	"research",
	"summarization",
	"copywriting",
	"data_analysis",
	"qa_review",
	"planning",
}

// toolParamValues is the substitution pool for tool parameter swaps.
var toolParamValues = []string{"low", "medium", "high"}

// Generator builds variation operations using an injected random source so
// that generation is reproducible in tests.
//
// Thread Safety: not safe for concurrent use; math/rand.Rand is not
// synchronized. Give each goroutine its own Generator.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded with the given value. The same
// seed over the same document yields the same operations.
func NewGenerator(seed int64) *Generator {
	return NewGeneratorFromSource(rand.NewSource(seed))
}

// NewGeneratorFromSource creates a generator over an explicit random source.
func NewGeneratorFromSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Generate produces up to count variation operations for the document.
//
// Kind selection per slot is uniform over the closed operation kind set. A
// kind with no structural target in this document (no rules to edit, fewer
// than two workflow steps to reorder) yields no operation for its slot, so
// the result may be shorter than count. Callers must not assume exact
// cardinality.
func (g *Generator) Generate(doc datatypes.ConfigurationDocument, count int) ([]datatypes.VariationOperation, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}

	ops := make([]datatypes.VariationOperation, 0, count)
	for i := 0; i < count; i++ {
		kind := datatypes.AllOperationKinds[g.rng.Intn(len(datatypes.AllOperationKinds))]
		op, ok := g.buildOperation(doc, kind)
		if !ok {
			// Structurally inapplicable for this document. Expected with
			// small documents; skip the slot silently.
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// buildOperation resolves one operation of the given kind against the
// document, returning false when the kind has no valid target.
func (g *Generator) buildOperation(doc datatypes.ConfigurationDocument, kind datatypes.OperationKind) (datatypes.VariationOperation, bool) {
	op := datatypes.VariationOperation{
		OperationID: uuid.NewString(),
		Kind:        kind,
	}

	switch kind {
	case datatypes.KindPersonaEdit:
		if len(doc.Rules) == 0 {
			return op, false
		}
		idx := g.rng.Intn(len(doc.Rules))
		emphasis := personaEmphases[g.rng.Intn(len(personaEmphases))]
		op.TargetIndex = idx
		op.Replacement = doc.Rules[idx] + " " + emphasis
		op.Description = fmt.Sprintf("rewrite rule %d with emphasis %q", idx, emphasis)

	case datatypes.KindToolSwap:
		if len(doc.Tools) == 0 {
			return op, false
		}
		idx := g.rng.Intn(len(doc.Tools))
		value := toolParamValues[g.rng.Intn(len(toolParamValues))]
		op.TargetIndex = idx
		op.ParamKey = "intensity"
		op.ParamValue = value
		op.Description = fmt.Sprintf("set tool %q parameter intensity=%s", doc.Tools[idx].Name, value)

	case datatypes.KindWorkflowReorder:
		if len(doc.Workflow) < 2 {
			return op, false
		}
		a := g.rng.Intn(len(doc.Workflow))
		b := g.rng.Intn(len(doc.Workflow) - 1)
		if b >= a {
			b++
		}
		op.TargetIndex = a
		op.SwapIndex = b
		op.Description = fmt.Sprintf("swap workflow steps %d and %d", a, b)

	case datatypes.KindSkillSwap:
		if len(doc.Skills) == 0 {
			return op, false
		}
		idx := g.rng.Intn(len(doc.Skills))
		replacement := skillCatalog[g.rng.Intn(len(skillCatalog))]
		if replacement == doc.Skills[idx] {
			replacement = skillCatalog[(indexOf(skillCatalog, replacement)+1)%len(skillCatalog)]
		}
		op.TargetIndex = idx
		op.Replacement = replacement
		op.Description = fmt.Sprintf("substitute skill %q with %q", doc.Skills[idx], replacement)

	case datatypes.KindTeamEdit:
		if len(doc.Roles) == 0 {
			return op, false
		}
		idx := g.rng.Intn(len(doc.Roles))
		op.TargetIndex = idx
		op.Replacement = doc.Roles[idx].Name + "_alt"
		op.Description = fmt.Sprintf("clone role %q as %q", doc.Roles[idx].Name, op.Replacement)

	default:
		return op, false
	}

	return op, true
}

func indexOf(items []string, target string) int {
	for i, s := range items {
		if s == target {
			return i
		}
	}
	return 0
}
