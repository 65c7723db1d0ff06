package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/pkg/butterfly"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

// ButterflyHandler reports pending long-range consequences for a branch.
// Routes:
// GET /v1/branch/{id}/butterfly - Current butterfly analysis
type ButterflyHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewButterflyHandler(logger *slog.Logger, storage storage.Storage) *ButterflyHandler {
	return &ButterflyHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *ButterflyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.encodeError(w, "Method not allowed. Only GET is supported.")
		return
	}

	// Expected: /v1/branch/{id}/butterfly
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[3] != "butterfly" {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid path. Expected /v1/branch/{id}/butterfly")
		return
	}

	branchID, err := uuid.Parse(parts[2])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid branch ID format")
		return
	}

	b, err := h.storage.LoadBranchState(r.Context(), branchID)
	if err != nil {
		h.logger.Error("Failed to load branch", "uuid", branchID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to load branch")
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNotFound)
		h.encodeError(w, "Branch not found")
		return
	}

	analysis := butterfly.Track(b.ChoiceHistory, b.WorldState, b.CurrentEpisode)
	if err := json.NewEncoder(w).Encode(analysis); err != nil {
		h.logger.Error("Failed to encode butterfly analysis", "error", err)
	}
}

func (h *ButterflyHandler) encodeError(w http.ResponseWriter, msg string) {
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
