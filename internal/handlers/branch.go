package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/worker"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// defaultFinaleEpisode is where an unscheduled story is pulled to a
// close when the author supplied no convergence points.
const defaultFinaleEpisode = 12

// CreateBranchRequest defines the request body for creating a new branch
type CreateBranchRequest struct {
	PremiseID string `json:"premise_id"` // Required: premise file ID

	// Optional authored schedule; a default finale point is used when empty.
	ConvergencePoints []convergence.Point `json:"convergence_points,omitempty"`
	FlexibilityWindow int                 `json:"flexibility_window,omitempty"`
}

// CreateBranchResponse bundles the new branch with its opening catalog.
type CreateBranchResponse struct {
	Branch  *branch.BranchState `json:"branch"`
	Catalog []narrative.Choice  `json:"catalog"`
}

// BranchHandler handles branch lifecycle operations.
// Routes:
// POST /v1/branch             - Create new branch from a premise
// GET /v1/branch/{id}         - Read branch by ID
// DELETE /v1/branch/{id}      - Delete branch by ID
// POST /v1/branch/{id}/fork   - Fork branch into a new timeline
type BranchHandler struct {
	storage   storage.Storage
	processor *worker.ResolutionProcessor
	logger    *slog.Logger
}

func NewBranchHandler(logger *slog.Logger, storage storage.Storage, processor *worker.ResolutionProcessor) *BranchHandler {
	return &BranchHandler{
		storage:   storage,
		processor: processor,
		logger:    logger,
	}
}

func (h *BranchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/branch"), "/")
	parts := strings.Split(path, "/")

	var branchID uuid.UUID
	var err error
	if parts[0] != "" {
		branchID, err = uuid.Parse(parts[0])
		if err != nil {
			h.logger.Warn("Invalid branch ID", "id", parts[0], "error", err)
			w.WriteHeader(http.StatusBadRequest)
			h.encodeError(w, "Invalid branch ID format")
			return
		}
	}

	switch {
	case r.Method == http.MethodPost && branchID == uuid.Nil:
		h.handleCreate(w, r)
	case r.Method == http.MethodGet && branchID != uuid.Nil:
		h.handleRead(w, r, branchID)
	case r.Method == http.MethodDelete && branchID != uuid.Nil:
		h.handleDelete(w, r, branchID)
	case r.Method == http.MethodPost && branchID != uuid.Nil && len(parts) == 2 && parts[1] == "fork":
		h.handleFork(w, r, branchID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.encodeError(w, "Method not allowed")
	}
}

func (h *BranchHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid request body")
		return
	}
	if req.PremiseID == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "premise_id is required")
		return
	}

	premise, err := h.storage.GetPremise(r.Context(), req.PremiseID)
	if err != nil {
		h.logger.Warn("Premise not found", "id", req.PremiseID, "error", err)
		w.WriteHeader(http.StatusNotFound)
		h.encodeError(w, "Premise not found: "+req.PremiseID)
		return
	}
	if err := premise.Validate(); err != nil {
		h.logger.Error("Premise failed validation", "id", req.PremiseID, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		h.encodeError(w, "Premise invalid: "+err.Error())
		return
	}

	b := branch.New(premise)

	points := req.ConvergencePoints
	if len(points) == 0 {
		points = []convergence.Point{{
			ID:            "finale",
			TargetEpisode: defaultFinaleEpisode,
			Type:          convergence.TypeInevitable,
			Force:         10,
			RequiredElements: []convergence.RequiredElement{
				{Element: "protagonist_alive", Flexibility: convergence.FlexibilityNone},
			},
		}}
	}
	b.Schedule = branch.ConvergenceSchedule{
		FlexibilityWindow: req.FlexibilityWindow,
	}
	for _, pt := range points {
		b.Schedule.UpcomingPoints = append(b.Schedule.UpcomingPoints, pt.ID)
		if pt.Type == convergence.TypeInevitable &&
			(b.Schedule.NextMajorConvergence == 0 || pt.TargetEpisode < b.Schedule.NextMajorConvergence) {
			b.Schedule.NextMajorConvergence = pt.TargetEpisode
		}
	}

	if err := h.storage.SaveBranchState(r.Context(), b.ID, b); err != nil {
		h.logger.Error("Failed to save branch", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to save branch")
		return
	}
	if err := h.storage.SaveCatalog(r.Context(), b.ID, premise.OpeningChoices); err != nil {
		h.logger.Error("Failed to save opening catalog", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to save opening catalog")
		return
	}
	if err := h.storage.SaveConvergencePoints(r.Context(), b.ID, points); err != nil {
		h.logger.Error("Failed to save convergence points", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to save convergence points")
		return
	}

	h.logger.Info("Branch created",
		"branch", b.ID.String(),
		"premise", premise.ID)

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(CreateBranchResponse{
		Branch:  b,
		Catalog: premise.OpeningChoices,
	}); err != nil {
		h.logger.Error("Failed to encode branch response", "error", err)
	}
}

func (h *BranchHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	b, err := h.storage.LoadBranchState(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load branch", "uuid", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to load branch")
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNotFound)
		h.encodeError(w, "Branch not found")
		return
	}

	if err := json.NewEncoder(w).Encode(b); err != nil {
		h.logger.Error("Failed to encode branch", "error", err)
	}
}

func (h *BranchHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteBranchState(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete branch", "uuid", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to delete branch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForkBranchRequest names the choice the fork diverges at.
type ForkBranchRequest struct {
	OriginChoiceID string `json:"origin_choice_id"`
}

func (h *BranchHandler) handleFork(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ForkBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.encodeError(w, "Invalid request body")
		return
	}

	fork, err := h.processor.ProcessFork(r.Context(), id, req.OriginChoiceID)
	if err != nil {
		h.logger.Error("Failed to fork branch", "uuid", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.encodeError(w, "Failed to fork branch")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(fork); err != nil {
		h.logger.Error("Failed to encode fork", "error", err)
	}
}

func (h *BranchHandler) encodeError(w http.ResponseWriter, msg string) {
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
