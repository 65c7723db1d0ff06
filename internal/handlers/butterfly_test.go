package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/butterfly"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

func TestButterflyHandler(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := NewButterflyHandler(discardLogger(), mockStorage)

	b := branch.New(testPremise())
	b.ChoiceHistory = []branch.HistoryEntry{
		{
			Episode: 1,
			Choice:  narrative.Choice{ID: "descend-cellar"},
			Consequences: []narrative.Consequence{
				{
					Severity: 5,
					ButterflyPotential: []narrative.ButterflyPotential{
						{ProbabilityThreshold: 1.0, CascadeDelay: 4, UltimateImpact: "the pattern is learned"},
					},
				},
			},
		},
	}
	b.CurrentEpisode = 3

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if err := mockStorage.SaveBranchState(ctx, b.ID, b); err != nil {
		t.Fatalf("Failed to seed branch: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/branch/"+b.ID.String()+"/butterfly", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var analysis butterfly.Analysis
	if err := json.NewDecoder(w.Body).Decode(&analysis); err != nil {
		t.Fatalf("Failed to decode analysis: %v", err)
	}
	if len(analysis.EmergingEffects) != 1 {
		t.Fatalf("Expected 1 emerging effect, got %d", len(analysis.EmergingEffects))
	}
	if analysis.EmergingEffects[0].CurrentProbability != 0.5 {
		t.Errorf("Expected emergence probability 0.5 at episode 3, got %v",
			analysis.EmergingEffects[0].CurrentProbability)
	}
}

func TestButterflyHandler_BranchNotFound(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := NewButterflyHandler(discardLogger(), mockStorage)

	req := httptest.NewRequest(http.MethodGet, "/v1/branch/"+uuid.New().String()+"/butterfly", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestButterflyHandler_BadPath(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := NewButterflyHandler(discardLogger(), mockStorage)

	req := httptest.NewRequest(http.MethodGet, "/v1/branch/not-a-uuid/butterfly", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
