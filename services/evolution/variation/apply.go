// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package variation

import (
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// Apply errors.
var (
	// ErrUnknownKind indicates the operation kind is not in the closed set.
	ErrUnknownKind = errors.New("unknown operation kind")

	// ErrTargetOutOfRange indicates the operation references an element the
	// document does not have. Operations are only valid against the document
	// they were generated for.
	ErrTargetOutOfRange = errors.New("operation target out of range")
)

// Apply replays a variation operation against a document and returns the
// resulting document.
//
// Apply never mutates its input; callers rely on retaining the pre-image for
// lineage comparison. Given the same document and operation it is fully
// deterministic apart from the supplied timestamp, which is recorded in the
// new mutation-history entry. The result's generation is the parent's plus
// one and its parent fingerprint is computed over the pre-image.
func Apply(doc datatypes.ConfigurationDocument, op datatypes.VariationOperation, now time.Time) (datatypes.ConfigurationDocument, error) {
	out := doc.Clone()

	switch op.Kind {
	case datatypes.KindPersonaEdit:
		if op.TargetIndex < 0 || op.TargetIndex >= len(out.Rules) {
			return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: rule %d", ErrTargetOutOfRange, op.TargetIndex)
		}
		out.Rules[op.TargetIndex] = op.Replacement

	case datatypes.KindToolSwap:
		if op.TargetIndex < 0 || op.TargetIndex >= len(out.Tools) {
			return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: tool %d", ErrTargetOutOfRange, op.TargetIndex)
		}
		if out.Tools[op.TargetIndex].Params == nil {
			out.Tools[op.TargetIndex].Params = make(map[string]string, 1)
		}
		out.Tools[op.TargetIndex].Params[op.ParamKey] = op.ParamValue

	case datatypes.KindWorkflowReorder:
		if op.TargetIndex < 0 || op.TargetIndex >= len(out.Workflow) ||
			op.SwapIndex < 0 || op.SwapIndex >= len(out.Workflow) {
			return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: steps %d,%d", ErrTargetOutOfRange, op.TargetIndex, op.SwapIndex)
		}
		out.Workflow[op.TargetIndex], out.Workflow[op.SwapIndex] = out.Workflow[op.SwapIndex], out.Workflow[op.TargetIndex]

	case datatypes.KindSkillSwap:
		if op.TargetIndex < 0 || op.TargetIndex >= len(out.Skills) {
			return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: skill %d", ErrTargetOutOfRange, op.TargetIndex)
		}
		out.Skills[op.TargetIndex] = op.Replacement

	case datatypes.KindTeamEdit:
		if op.TargetIndex < 0 || op.TargetIndex >= len(out.Roles) {
			return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: role %d", ErrTargetOutOfRange, op.TargetIndex)
		}
		clone := out.Roles[op.TargetIndex]
		clone.Name = op.Replacement
		out.Roles = append(out.Roles, clone)

	default:
		return datatypes.ConfigurationDocument{}, fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}

	parentFingerprint := Fingerprint(doc)
	record := datatypes.MutationRecord{
		OperationID: op.OperationID,
		Description: op.Description,
		Timestamp:   now,
	}

	if out.Evolution == nil {
		out.Evolution = &datatypes.EvolutionState{}
	}
	out.Evolution.Generation = doc.Generation() + 1
	out.Evolution.ParentFingerprint = parentFingerprint
	out.Evolution.MutationHistory = append(out.Evolution.MutationHistory, record)

	return out, nil
}
