package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/archive"
)

// ChronicleHandler serves the durable resolution history of a branch.
// Routes:
// GET /v1/branch/{id}/chronicle - List archived resolutions
type ChronicleHandler struct {
	chronicle *archive.DB
	logger    *slog.Logger
}

func NewChronicleHandler(logger *slog.Logger, chronicle *archive.DB) *ChronicleHandler {
	return &ChronicleHandler{
		chronicle: chronicle,
		logger:    logger,
	}
}

func (h *ChronicleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.encodeError(w, "Method not allowed. Only GET is supported.")
		return
	}

	// Expected: /v1/branch/{id}/chronicle
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[3] != "chronicle" {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid path. Expected /v1/branch/{id}/chronicle")
		return
	}

	branchID, err := uuid.Parse(parts[2])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid branch ID format")
		return
	}

	entries, err := h.chronicle.ListByBranch(r.Context(), branchID)
	if err != nil {
		h.logger.Error("Failed to list chronicle", "uuid", branchID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to list chronicle")
		return
	}

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.logger.Error("Failed to encode chronicle", "error", err)
	}
}

func (h *ChronicleHandler) encodeError(w http.ResponseWriter, msg string) {
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
