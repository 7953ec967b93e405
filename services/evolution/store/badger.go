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
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces document keys inside the shared BadgerDB keyspace.
const keyPrefix = "config/"

// BadgerConfig holds configuration for the embedded document store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode with no disk persistence. For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. Promotions are
	// rare and must survive a crash, so production should keep this on.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, BadgerDB
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for the given path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O, no
// sync overhead.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists documents in an embedded BadgerDB instance.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// isolation.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a BadgerDB-backed store.
// The caller must Close the store when done.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements ConfigStore.
func (s *BadgerStore) Load(_ context.Context, name string) (datatypes.ConfigurationDocument, error) {
	var doc datatypes.ConfigurationDocument
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.ConfigurationDocument{}, ErrNotFound
	}
	if err != nil {
		return datatypes.ConfigurationDocument{}, fmt.Errorf("load document %s: %w", name, err)
	}
	return doc, nil
}

// Persist implements ConfigStore. The opaque location is the storage key.
func (s *BadgerStore) Persist(_ context.Context, name, generationSuffix string, doc datatypes.ConfigurationDocument) (string, error) {
	key := keyPrefix + GenerationKey(name, generationSuffix)
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("persist document %s: %w", key, err)
	}
	return key, nil
}

// Put seeds a document under its base name, mainly for bootstrap and tests.
func (s *BadgerStore) Put(name string, doc datatypes.ConfigurationDocument) error {
	_, err := s.Persist(context.Background(), name, "", doc)
	return err
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ ConfigStore = (*BadgerStore)(nil)
