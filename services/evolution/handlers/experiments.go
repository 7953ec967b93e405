// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin HTTP handlers for the evolution service.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/engine"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routing"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/store"
	"github.com/gin-gonic/gin"
)

// StartExperimentRequest is the payload for POST /v1/experiments.
type StartExperimentRequest struct {
	DocumentName  string  `json:"document_name" binding:"required"`
	VariantCount  int     `json:"variant_count"`
	DurationHours float64 `json:"duration_hours" binding:"required,gt=0"`
}

// StartExperiment builds and activates a new experiment.
func StartExperiment(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartExperimentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		exp, err := eng.StartExperiment(c.Request.Context(), req.DocumentName, req.VariantCount, req.DurationHours)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("failed to start experiment",
				"document", req.DocumentName, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, exp)
	}
}

// GetExperiment returns the current experiment snapshot.
func GetExperiment(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		exp, err := eng.GetExperiment(c.Param("experimentId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, exp)
	}
}

// RouteRequest is the payload for POST /v1/experiments/:experimentId/route.
type RouteRequest struct {
	CallerID string `json:"caller_id" binding:"required"`
}

// RouteCaller deterministically assigns the caller to a variant.
func RouteCaller(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		variantID, err := eng.Route(req.CallerID, c.Param("experimentId"))
		if errors.Is(err, routing.ErrNotRegistered) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			slog.Error("routing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"variant_id": variantID})
	}
}

// TrackRequest is the payload for POST /v1/experiments/:experimentId/metrics.
type TrackRequest struct {
	VariantID string  `json:"variant_id" binding:"required"`
	Metric    string  `json:"metric" binding:"required"`
	Value     float64 `json:"value"`
}

// TrackMetric appends one observation for a variant.
func TrackMetric(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := eng.TrackObservation(c.Param("experimentId"), req.VariantID, req.Metric, req.Value)
		if errors.Is(err, engine.ErrUnknownExperiment) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, engine.ErrUnknownVariant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			slog.Error("tracking failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tracking failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "tracked"})
	}
}

// CompleteExperiment evaluates fitness, selects a winner and promotes it.
// Safe to retry: a recorded outcome is returned as-is and a failed promotion
// leaves the experiment retryable.
func CompleteExperiment(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("experimentId")
		outcome, err := eng.CompleteExperiment(c.Request.Context(), id)
		if errors.Is(err, engine.ErrUnknownExperiment) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			// Persistence failures are surfaced verbatim; the caller retries.
			slog.Error("experiment completion failed", "experiment_id", id, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}
