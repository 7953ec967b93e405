// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evolution provides the evolutionary configuration-experimentation
// service.
//
// The service wires the experiment engine, traffic router, metrics service
// and a configuration store behind a Gin HTTP API. Construction follows the
// Config/New/Run pattern: configuration is resolved once, New assembles all
// collaborators, and Run blocks serving HTTP until shutdown.
package evolution

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/engine"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/metrics"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/observability"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routes"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routing"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/store"
	"github.com/gin-gonic/gin"
)

// Store backend names accepted by Config.StoreBackend.
const (
	StoreMemory     = "memory"
	StoreFilesystem = "filesystem"
	StoreBadger     = "badger"
)

// Config holds evolution service configuration. All fields have defaults
// applied by New.
type Config struct {
	// Port is the HTTP server port. Default: 12230.
	Port int

	// StoreBackend selects the configuration store: "memory", "filesystem"
	// or "badger". Default: "memory".
	StoreBackend string

	// DataDir is the storage directory for the filesystem and badger
	// backends. Default: "./data".
	DataDir string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses the GIN_MODE env var or "debug".
	GinMode string

	// EnableMetrics enables the Prometheus /metrics endpoint. Default: true.
	EnableMetrics bool
}

// Service is the evolution service lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router exposes the configured Gin engine for integration tests.
	Router() *gin.Engine

	// Engine exposes the experiment engine for embedded use.
	Engine() *engine.Engine

	// Close releases store resources.
	Close() error
}

type service struct {
	config Config
	router *gin.Engine
	engine *engine.Engine
	closer func() error
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreMemory
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	return cfg
}

// New assembles the service: store backend, router, metrics, engine and the
// HTTP surface.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)

	var (
		cfgStore store.ConfigStore
		closer   = func() error { return nil }
	)
	switch cfg.StoreBackend {
	case StoreMemory:
		cfgStore = store.NewMemoryStore()
	case StoreFilesystem:
		fs, err := store.NewFilesystemStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("init filesystem store: %w", err)
		}
		cfgStore = fs
	case StoreBadger:
		bs, err := store.OpenBadgerStore(store.DefaultBadgerConfig(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("init badger store: %w", err)
		}
		cfgStore = bs
		closer = bs.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for evolution")
	}

	eng := engine.New(cfgStore, routing.NewRouter(), metrics.NewService())

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.Default()
	routes.SetupRoutes(router, eng)

	return &service{
		config: cfg,
		router: router,
		engine: eng,
		closer: closer,
	}, nil
}

// Run implements Service.
func (s *service) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("evolution service listening", "addr", addr)
	return s.router.Run(addr)
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Engine implements Service.
func (s *service) Engine() *engine.Engine {
	return s.engine
}

// Close implements Service.
func (s *service) Close() error {
	return s.closer()
}
