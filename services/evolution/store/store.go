// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists configuration documents across generations.
//
// Three implementations back the same interface: an in-memory store for
// tests, a filesystem store writing JSON documents, and a BadgerDB store for
// low-latency embedded persistence.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// ErrNotFound indicates no document exists under the requested name.
var ErrNotFound = errors.New("configuration document not found")

// ConfigStore is the durable owner of configuration documents.
//
// Persist writes a new generation of a document under a name derived from
// the base name and generationSuffix, so repeated promotions of one lineage
// never collide. The returned location is an opaque string (a path or a
// storage key); callers must not interpret it.
type ConfigStore interface {
	// Load returns the document stored under name.
	Load(ctx context.Context, name string) (datatypes.ConfigurationDocument, error)

	// Persist stores doc under the generation-qualified identity and returns
	// its opaque storage location.
	Persist(ctx context.Context, name, generationSuffix string, doc datatypes.ConfigurationDocument) (string, error)
}

// GenerationKey derives the storage identity for a promoted generation.
func GenerationKey(name, generationSuffix string) string {
	if generationSuffix == "" {
		return name
	}
	return name + "_" + generationSuffix
}
