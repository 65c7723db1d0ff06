package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/archive"
	"github.com/jwebster45206/branch-engine/internal/services"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/catalog"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

const enrichTimeout = 30 * time.Second

// ResolutionProcessor handles the core resolution logic. It's used by
// both the HTTP handler (synchronously) and the worker (asynchronously).
type ResolutionProcessor struct {
	storage      storage.Storage
	orchestrator *engine.Orchestrator
	llmService   services.LLMService
	chronicle    *archive.DB
	logger       *slog.Logger
}

// NewResolutionProcessor creates a new resolution processor. llmService
// and chronicle may be nil; resolution then skips enrichment and
// archiving.
func NewResolutionProcessor(
	store storage.Storage,
	orchestrator *engine.Orchestrator,
	llmService services.LLMService,
	chronicle *archive.DB,
	logger *slog.Logger,
) *ResolutionProcessor {
	return &ResolutionProcessor{
		storage:      store,
		orchestrator: orchestrator,
		llmService:   llmService,
		chronicle:    chronicle,
		logger:       logger,
	}
}

// ProcessResolution loads everything a resolution needs, runs the
// orchestrator, and persists the outcome. On error nothing is saved
// and the stored branch remains the last-good state.
func (p *ResolutionProcessor) ProcessResolution(ctx context.Context, branchID uuid.UUID, choiceID string) (*engine.Result, error) {
	b, err := p.storage.LoadBranchState(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch state: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("branch not found: %s", branchID.String())
	}

	premise, err := p.storage.GetPremise(ctx, b.PremiseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load premise: %w", err)
	}

	offered, err := p.storage.LoadCatalog(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	points, err := p.storage.LoadConvergencePoints(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load convergence points: %w", err)
	}

	result, err := p.orchestrator.ResolveChoice(b, offered, choiceID, premise, points)
	if err != nil {
		return nil, err
	}

	// Enrichment degrades to template text, it never fails a resolution.
	if p.llmService != nil && len(result.NextCatalog) > 0 {
		enrichCtx, cancel := context.WithTimeout(ctx, enrichTimeout)
		enriched, enrichErr := catalog.Enrich(enrichCtx, p.llmService, result.NextCatalog, result.Branch, premise, p.logger)
		cancel()
		if enrichErr != nil {
			p.logger.Warn("Catalog served with degraded enrichment",
				"branch", branchID.String(),
				"error", enrichErr)
		}
		result.NextCatalog = enriched
	}

	if err := p.storage.SaveBranchState(ctx, branchID, result.Branch); err != nil {
		return nil, fmt.Errorf("failed to save branch state: %w", err)
	}
	if err := p.storage.SaveCatalog(ctx, branchID, result.NextCatalog); err != nil {
		return nil, fmt.Errorf("failed to save catalog: %w", err)
	}
	if result.ScheduledPoint != nil {
		points = append(points, *result.ScheduledPoint)
	}
	if err := p.storage.SaveConvergencePoints(ctx, branchID, points); err != nil {
		return nil, fmt.Errorf("failed to save convergence points: %w", err)
	}

	if p.chronicle != nil {
		resolved := result.Branch.ChoiceHistory[len(result.Branch.ChoiceHistory)-1].Choice
		if err := p.chronicle.Append(ctx, result.Branch, resolved, result.Derailed); err != nil {
			// The live state is already saved; a gap in the chronicle
			// is survivable.
			p.logger.Error("Failed to archive resolution",
				"branch", branchID.String(),
				"error", err)
		}
	}

	return result, nil
}

// ProcessFork clones a branch at its current state into a new timeline.
// The fork shares premise and convergence schedule with its parent.
func (p *ResolutionProcessor) ProcessFork(ctx context.Context, branchID uuid.UUID, originChoiceID string) (*branch.BranchState, error) {
	b, err := p.storage.LoadBranchState(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch state: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("branch not found: %s", branchID.String())
	}

	fork := b.Fork(originChoiceID)

	if err := p.storage.SaveBranchState(ctx, fork.ID, fork); err != nil {
		return nil, fmt.Errorf("failed to save forked branch: %w", err)
	}

	// The fork starts from the same offered catalog and schedule.
	offered, err := p.storage.LoadCatalog(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := p.storage.SaveCatalog(ctx, fork.ID, offered); err != nil {
		return nil, fmt.Errorf("failed to save forked catalog: %w", err)
	}

	points, err := p.storage.LoadConvergencePoints(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load convergence points: %w", err)
	}
	if err := p.storage.SaveConvergencePoints(ctx, fork.ID, points); err != nil {
		return nil, fmt.Errorf("failed to save forked convergence points: %w", err)
	}

	p.logger.Info("Branch forked",
		"parent", branchID.String(),
		"fork", fork.ID.String(),
		"origin_choice", originChoiceID)

	return fork, nil
}
