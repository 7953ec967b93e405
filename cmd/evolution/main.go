// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command evolution starts the configuration-experimentation HTTP server.
//
// # Environment Variables
//
//   - EVOLUTION_PORT: HTTP server port (default: 12230)
//   - EVOLUTION_STORE: store backend - memory, filesystem, badger (default: memory)
//   - EVOLUTION_DATA_DIR: storage directory for persistent backends (default: ./data)
//   - EVOLUTION_LOG_DIR: optional directory for JSON log files
//
// # Usage
//
//	go build -o evolution ./cmd/evolution
//	./evolution
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianEvolve/pkg/logging"
	"github.com/AleutianAI/AleutianEvolve/services/evolution"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "evolution",
		LogDir:  os.Getenv("EVOLUTION_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := evolution.Config{
		Port:          getEnvInt("EVOLUTION_PORT", 12230),
		StoreBackend:  getEnvString("EVOLUTION_STORE", evolution.StoreMemory),
		DataDir:       getEnvString("EVOLUTION_DATA_DIR", "./data"),
		EnableMetrics: true,
	}

	slog.Info("Starting evolution service",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"data_dir", cfg.DataDir,
	)

	svc, err := evolution.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create evolution service: %v", err)
	}
	defer svc.Close()

	if err := svc.Run(); err != nil {
		log.Fatalf("Evolution service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
