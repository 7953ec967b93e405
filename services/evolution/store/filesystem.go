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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianEvolve/pkg/validation"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// FilesystemStore persists documents as pretty-printed JSON files in a
// single directory, one file per generation.
//
// Thread Safety: safe for concurrent use of distinct names. Concurrent
// writes to the same generation key race at the filesystem level; the engine
// serializes promotions per experiment, which is the only writer.
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore creates the directory if needed and returns a store
// rooted there.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if dir == "" {
		return nil, errors.New("store directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return &FilesystemStore{dir: dir}, nil
}

// Load implements ConfigStore.
func (s *FilesystemStore) Load(_ context.Context, name string) (datatypes.ConfigurationDocument, error) {
	if err := validation.ValidateName(name); err != nil {
		return datatypes.ConfigurationDocument{}, err
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return datatypes.ConfigurationDocument{}, ErrNotFound
	}
	if err != nil {
		return datatypes.ConfigurationDocument{}, fmt.Errorf("read document %s: %w", name, err)
	}

	var doc datatypes.ConfigurationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return datatypes.ConfigurationDocument{}, fmt.Errorf("decode document %s: %w", name, err)
	}
	return doc, nil
}

// Persist implements ConfigStore. The opaque location is the file path.
func (s *FilesystemStore) Persist(_ context.Context, name, generationSuffix string, doc datatypes.ConfigurationDocument) (string, error) {
	if err := validation.ValidateName(name); err != nil {
		return "", err
	}

	key := GenerationKey(name, generationSuffix)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", key, err)
	}

	path := s.path(key)
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write document %s: %w", key, err)
	}
	return path, nil
}

func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

var _ ConfigStore = (*FilesystemStore)(nil)
