// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// MemoryStore keeps documents in a process-local map. Useful for tests and
// for running the service without any persistence configured.
//
// Thread Safety: safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]datatypes.ConfigurationDocument
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]datatypes.ConfigurationDocument)}
}

// Put seeds a document under its base name.
func (s *MemoryStore) Put(name string, doc datatypes.ConfigurationDocument) {
	s.mu.Lock()
	s.docs[name] = doc.Clone()
	s.mu.Unlock()
}

// Load implements ConfigStore.
func (s *MemoryStore) Load(_ context.Context, name string) (datatypes.ConfigurationDocument, error) {
	s.mu.RLock()
	doc, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return datatypes.ConfigurationDocument{}, ErrNotFound
	}
	return doc.Clone(), nil
}

// Persist implements ConfigStore. The opaque location is the storage key.
func (s *MemoryStore) Persist(_ context.Context, name, generationSuffix string, doc datatypes.ConfigurationDocument) (string, error) {
	key := GenerationKey(name, generationSuffix)
	s.mu.Lock()
	s.docs[key] = doc.Clone()
	s.mu.Unlock()
	return key, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

var _ ConfigStore = (*MemoryStore)(nil)
