// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/engine"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/metrics"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routes"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/routing"
	"github.com/AleutianAI/AleutianEvolve/services/evolution/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()

	ms := store.NewMemoryStore()
	ms.Put("content_team", datatypes.ConfigurationDocument{
		Name: "content_team",
		Roles: []datatypes.RoleAssignment{
			{Name: "writer", Persona: "Long-form content specialist."},
			{Name: "editor", Persona: "Quality gatekeeper."},
		},
		Rules: []string{"Cite sources."},
		Tools: []datatypes.ToolRef{
			{Name: "web_search", Params: map[string]string{"depth": "3"}},
		},
		Workflow: []datatypes.WorkflowStep{
			{Name: "draft", Role: "writer"},
			{Name: "review", Role: "editor"},
		},
		Skills: []string{"research", "copywriting"},
	})

	eng := engine.New(ms, routing.NewRouter(), metrics.NewService(),
		engine.WithSeed(42),
		engine.WithClock(func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		}),
	)

	router := gin.New()
	routes.SetupRoutes(router, eng)
	return router, ms
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func startExperimentHTTP(t *testing.T, router *gin.Engine, variantCount int) datatypes.Experiment {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/v1/experiments", gin.H{
		"document_name":  "content_team",
		"variant_count":  variantCount,
		"duration_hours": 24,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var exp datatypes.Experiment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))
	return exp
}

// =============================================================================
// Lifecycle Flow Tests
// =============================================================================

func TestExperimentLifecycle_FullFlow(t *testing.T) {
	router, ms := newTestServer(t)

	exp := startExperimentHTTP(t, router, 1)
	require.Len(t, exp.Variants, 2)
	assert.Equal(t, datatypes.StatusActive, exp.Status)

	// Route a caller; the assignment must repeat on every call.
	w := doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/route", gin.H{
		"caller_id": "caller-7",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var routed struct {
		VariantID string `json:"variant_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routed))
	require.NotNil(t, exp.Variant(routed.VariantID))

	again := doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/route", gin.H{
		"caller_id": "caller-7",
	})
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, w.Body.String(), again.Body.String())

	// Track enough revenue on B to clear the improvement threshold.
	for variantID, value := range map[string]float64{"A": 100, "B": 110} {
		w := doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/metrics", gin.H{
			"variant_id": variantID,
			"metric":     metrics.MetricRevenue,
			"value":      value,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome datatypes.ExperimentOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.True(t, outcome.Promoted)
	assert.Equal(t, "B", outcome.WinnerID)
	assert.Equal(t, "content_team_gen1", outcome.Location)

	_, err := ms.Load(t.Context(), "content_team_gen1")
	assert.NoError(t, err, "promoted generation is persisted")

	// Completion is idempotent over HTTP as well.
	repeat := doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, repeat.Code)
	assert.JSONEq(t, w.Body.String(), repeat.Body.String())

	// The completed experiment is still inspectable.
	get := doJSON(t, router, http.MethodGet, "/v1/experiments/"+exp.ID, nil)
	require.Equal(t, http.StatusOK, get.Code)
	var final datatypes.Experiment
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &final))
	assert.Equal(t, datatypes.StatusCompleted, final.Status)
}

// =============================================================================
// Error Mapping Tests
// =============================================================================

func TestStartExperiment_Errors(t *testing.T) {
	router, _ := newTestServer(t)

	testCases := []struct {
		name     string
		body     gin.H
		wantCode int
	}{
		{
			name:     "missing document name",
			body:     gin.H{"duration_hours": 24},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing duration",
			body:     gin.H{"document_name": "content_team"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown document",
			body:     gin.H{"document_name": "no_such_team", "duration_hours": 24},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "too many variants",
			body:     gin.H{"document_name": "content_team", "variant_count": 99, "duration_hours": 24},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/experiments", tc.body)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestGetExperiment_Unknown(t *testing.T) {
	router, _ := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/v1/experiments/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteCaller_Errors(t *testing.T) {
	router, _ := newTestServer(t)
	exp := startExperimentHTTP(t, router, 1)

	w := doJSON(t, router, http.MethodPost, "/v1/experiments/missing/route", gin.H{"caller_id": "caller-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/route", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "caller_id is required")
}

func TestTrackMetric_Errors(t *testing.T) {
	router, _ := newTestServer(t)
	exp := startExperimentHTTP(t, router, 1)

	w := doJSON(t, router, http.MethodPost, "/v1/experiments/missing/metrics", gin.H{
		"variant_id": "A", "metric": "revenue", "value": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/metrics", gin.H{
		"variant_id": "Z", "metric": "revenue", "value": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/metrics", gin.H{
		"variant_id": "A", "value": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "metric name is required")
}

func TestCompleteExperiment_Unknown(t *testing.T) {
	router, _ := newTestServer(t)
	w := doJSON(t, router, http.MethodPost, "/v1/experiments/missing/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// Service Endpoint Tests
// =============================================================================

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouteDistributionOverHTTP(t *testing.T) {
	// Sanity check that the HTTP path preserves the 80/20 split for a single
	// generated variant.
	router, _ := newTestServer(t)
	exp := startExperimentHTTP(t, router, 1)

	const callers = 2000
	counts := map[string]int{}
	for i := 0; i < callers; i++ {
		w := doJSON(t, router, http.MethodPost, "/v1/experiments/"+exp.ID+"/route", gin.H{
			"caller_id": fmt.Sprintf("caller-%d", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
		var routed struct {
			VariantID string `json:"variant_id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routed))
		counts[routed.VariantID]++
	}

	assert.InDelta(t, 80, float64(counts["A"])/callers*100, 3.0)
	assert.InDelta(t, 20, float64(counts["B"])/callers*100, 3.0)
}
