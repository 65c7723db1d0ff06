package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/internal/services/events"
	"github.com/jwebster45206/branch-engine/internal/services/queue"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

// seedBranch puts a fresh branch with its opening catalog into storage.
func seedBranch(t *testing.T, mockStorage *storage.MockStorage) *branch.BranchState {
	t.Helper()
	premise := testPremise()
	mockStorage.AddPremise(premise)

	b := branch.New(premise)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if err := mockStorage.SaveBranchState(ctx, b.ID, b); err != nil {
		t.Fatalf("Failed to seed branch: %v", err)
	}
	if err := mockStorage.SaveCatalog(ctx, b.ID, premise.OpeningChoices); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}
	return b
}

func newChoiceHandler(t *testing.T, mockStorage *storage.MockStorage) *ChoiceHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := discardLogger()
	resolveQueue := queue.NewResolveQueue(queue.NewClientFromRedis(rdb, logger))
	broadcaster := events.NewBroadcaster(rdb, logger)
	return NewChoiceHandler(logger, testProcessor(mockStorage), resolveQueue, broadcaster)
}

func TestChoiceHandler_SyncResolve(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := newChoiceHandler(t, mockStorage)
	b := seedBranch(t, mockStorage)

	body, _ := json.Marshal(ResolveChoiceRequest{ChoiceID: "opening"})
	req := httptest.NewRequest(http.MethodPost, "/v1/branch/"+b.ID.String()+"/choice", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result engine.Result
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Branch.CurrentEpisode != 2 {
		t.Errorf("Expected episode advanced to 2, got %d", result.Branch.CurrentEpisode)
	}
	if len(result.Branch.ChoiceHistory) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(result.Branch.ChoiceHistory))
	}

	// The resolved state is persisted for the next request.
	ctx := req.Context()
	saved, err := mockStorage.LoadBranchState(ctx, b.ID)
	if err != nil || saved == nil {
		t.Fatal("Expected resolved branch persisted")
	}
	if saved.CurrentEpisode != 2 {
		t.Errorf("Expected persisted episode 2, got %d", saved.CurrentEpisode)
	}
	nextCatalog, err := mockStorage.LoadCatalog(ctx, b.ID)
	if err != nil || len(nextCatalog) == 0 {
		t.Error("Expected the next catalog persisted")
	}
}

func TestChoiceHandler_ChoiceNotInCatalog(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := newChoiceHandler(t, mockStorage)
	b := seedBranch(t, mockStorage)

	body, _ := json.Marshal(ResolveChoiceRequest{ChoiceID: "not-offered"})
	req := httptest.NewRequest(http.MethodPost, "/v1/branch/"+b.ID.String()+"/choice", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}

	// The stored branch is untouched.
	saved, _ := mockStorage.LoadBranchState(req.Context(), b.ID)
	if saved.CurrentEpisode != 1 || len(saved.ChoiceHistory) != 0 {
		t.Error("Failed resolution must leave the stored branch unchanged")
	}
}

func TestChoiceHandler_BranchNotFound(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := newChoiceHandler(t, mockStorage)

	body, _ := json.Marshal(ResolveChoiceRequest{ChoiceID: "opening"})
	req := httptest.NewRequest(http.MethodPost, "/v1/branch/"+uuid.New().String()+"/choice", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 for unknown branch, got %d", w.Code)
	}
}

func TestChoiceHandler_MissingChoiceID(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := newChoiceHandler(t, mockStorage)
	b := seedBranch(t, mockStorage)

	req := httptest.NewRequest(http.MethodPost, "/v1/branch/"+b.ID.String()+"/choice", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestChoiceHandler_AsyncResolve(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := discardLogger()
	resolveQueue := queue.NewResolveQueue(queue.NewClientFromRedis(rdb, logger))
	broadcaster := events.NewBroadcaster(rdb, logger)
	handler := NewChoiceHandler(logger, testProcessor(mockStorage), resolveQueue, broadcaster)
	b := seedBranch(t, mockStorage)

	body, _ := json.Marshal(ResolveChoiceRequest{ChoiceID: "opening", Async: true})
	req := httptest.NewRequest(http.MethodPost, "/v1/branch/"+b.ID.String()+"/choice", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp AsyncResolveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode async response: %v", err)
	}
	if resp.Status != "queued" || resp.RequestID == "" {
		t.Errorf("Expected a queued acknowledgement, got %+v", resp)
	}

	depth, err := resolveQueue.RequestQueueDepth(req.Context())
	if err != nil {
		t.Fatalf("Failed to read queue depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("Expected 1 queued request, got %d", depth)
	}
}

func TestChoiceHandler_MethodNotAllowed(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	handler := newChoiceHandler(t, mockStorage)

	req := httptest.NewRequest(http.MethodGet, "/v1/branch/"+uuid.New().String()+"/choice", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
