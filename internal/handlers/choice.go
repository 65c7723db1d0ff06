package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/services/events"
	"github.com/jwebster45206/branch-engine/internal/services/queue"
	"github.com/jwebster45206/branch-engine/internal/worker"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	queuePkg "github.com/jwebster45206/branch-engine/pkg/queue"
)

// ResolveChoiceRequest selects one choice from the branch's offered catalog.
type ResolveChoiceRequest struct {
	ChoiceID string `json:"choice_id"`

	// Async enqueues the resolution for a worker; the response carries
	// the request ID and results arrive on the branch's event stream.
	Async bool `json:"async,omitempty"`
}

// AsyncResolveResponse acknowledges a queued resolution.
type AsyncResolveResponse struct {
	RequestID string `json:"request_id"`
	BranchID  string `json:"branch_id"`
	Status    string `json:"status"`
}

// ChoiceHandler resolves choices against branches.
// Routes:
// POST /v1/branch/{id}/choice - Resolve a choice (sync or async)
type ChoiceHandler struct {
	processor    *worker.ResolutionProcessor
	resolveQueue *queue.ResolveQueue
	broadcaster  *events.Broadcaster
	logger       *slog.Logger
}

func NewChoiceHandler(logger *slog.Logger, processor *worker.ResolutionProcessor, resolveQueue *queue.ResolveQueue, broadcaster *events.Broadcaster) *ChoiceHandler {
	return &ChoiceHandler{
		processor:    processor,
		resolveQueue: resolveQueue,
		broadcaster:  broadcaster,
		logger:       logger,
	}
}

func (h *ChoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.encodeError(w, "Method not allowed. Only POST is supported.")
		return
	}

	// Expected: /v1/branch/{id}/choice
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[3] != "choice" {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid path. Expected /v1/branch/{id}/choice")
		return
	}

	branchID, err := uuid.Parse(parts[2])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid branch ID format")
		return
	}

	var req ResolveChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid request body")
		return
	}
	if req.ChoiceID == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "choice_id is required")
		return
	}

	if req.Async {
		h.handleAsync(w, r, branchID, req.ChoiceID)
		return
	}
	h.handleSync(w, r, branchID, req.ChoiceID)
}

func (h *ChoiceHandler) handleSync(w http.ResponseWriter, r *http.Request, branchID uuid.UUID, choiceID string) {
	result, err := h.processor.ProcessResolution(r.Context(), branchID, choiceID)
	if err != nil {
		var inv *branch.InvariantViolationError
		switch {
		case errors.Is(err, engine.ErrChoiceNotFound):
			h.logger.Warn("Choice not in offered catalog",
				"branch", branchID.String(),
				"choice", choiceID)
			w.WriteHeader(http.StatusUnprocessableEntity)
			h.encodeError(w, "Choice not found in offered catalog. Re-fetch the catalog and choose again.")
		case errors.As(err, &inv):
			h.logger.Error("Invariant violation during resolution",
				"branch", branchID.String(),
				"invariant", inv.Invariant,
				"detail", inv.Detail)
			w.WriteHeader(http.StatusConflict)
			h.encodeError(w, "Resolution rejected: "+inv.Invariant+". Branch state unchanged.")
		default:
			h.logger.Error("Failed to resolve choice",
				"branch", branchID.String(),
				"choice", choiceID,
				"error", err)
			w.WriteHeader(http.StatusInternalServerError)
			h.encodeError(w, "Failed to resolve choice")
		}
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode resolution result", "error", err)
	}
}

func (h *ChoiceHandler) handleAsync(w http.ResponseWriter, r *http.Request, branchID uuid.UUID, choiceID string) {
	req := queuePkg.NewResolveRequest(branchID, choiceID)

	if err := h.resolveQueue.EnqueueRequest(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue resolution", "branch", branchID.String(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to enqueue resolution")
		return
	}

	if err := h.broadcaster.PublishResolutionQueued(r.Context(), branchID, req.RequestID.String(), choiceID); err != nil {
		h.logger.Error("Failed to publish queued event", "error", err)
	}

	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(AsyncResolveResponse{
		RequestID: req.RequestID.String(),
		BranchID:  branchID.String(),
		Status:    "queued",
	}); err != nil {
		h.logger.Error("Failed to encode async response", "error", err)
	}
}

func (h *ChoiceHandler) encodeError(w http.ResponseWriter, msg string) {
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
