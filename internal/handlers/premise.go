package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/branch-engine/pkg/storage"
)

// PremiseHandler serves the authored premise library.
// Routes:
// GET /v1/premises      - List available premises
// GET /v1/premises/{id} - Read one premise
type PremiseHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewPremiseHandler(logger *slog.Logger, storage storage.Storage) *PremiseHandler {
	return &PremiseHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *PremiseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Method not allowed. Only GET is supported.",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/premises"), "/")
	if id == "" {
		h.handleList(w, r)
		return
	}
	h.handleGet(w, r, id)
}

func (h *PremiseHandler) handleList(w http.ResponseWriter, r *http.Request) {
	premises, err := h.storage.ListPremises(r.Context())
	if err != nil {
		h.logger.Error("Failed to list premises", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Failed to list premises",
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if err := json.NewEncoder(w).Encode(premises); err != nil {
		h.logger.Error("Failed to encode premises", "error", err)
	}
}

func (h *PremiseHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	premise, err := h.storage.GetPremise(r.Context(), id)
	if err != nil {
		h.logger.Warn("Premise not found", "id", id, "error", err)
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{
			Error: "Premise not found: " + id,
		}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if err := json.NewEncoder(w).Encode(premise); err != nil {
		h.logger.Error("Failed to encode premise", "error", err)
	}
}
