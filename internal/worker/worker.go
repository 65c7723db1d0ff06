package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/internal/services/events"
	"github.com/jwebster45206/branch-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/branch-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
)

// Worker processes requests from the resolve queue
type Worker struct {
	id          string
	queue       *queue.ResolveQueue
	processor   *ResolutionProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(resolveQueue *queue.ResolveQueue, processor *ResolutionProcessor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	broadcaster := events.NewBroadcaster(redisClient, log)

	return &Worker{
		id:          workerID,
		queue:       resolveQueue,
		processor:   processor,
		broadcaster: broadcaster,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	// Block waiting for next request (timeout to check for shutdown)
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Timeout or shutdown - this is normal
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}

	if req == nil {
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"branch_id", req.BranchID.String(),
	)

	// Try to acquire branch lock
	locked, err := w.acquireBranchLock(req.BranchID)
	if err != nil {
		return fmt.Errorf("failed to acquire branch lock: %w", err)
	}
	if !locked {
		// Another worker is processing this branch.
		// Re-queue at the end and try next request.
		w.log.Info("Branch already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"branch_id", req.BranchID.String(),
		)
		if err := w.queue.EnqueueRequest(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseBranchLock(req.BranchID)
	return w.processRequest(req)
}

// acquireBranchLock attempts to acquire a lock for a branch.
// Returns true if lock was acquired, false if already locked.
func (w *Worker) acquireBranchLock(branchID uuid.UUID) (bool, error) {
	lockKey := fmt.Sprintf("branch-lock:%s", branchID.String())

	result, err := w.redisClient.SetNX(w.ctx, lockKey, w.id, lockTTL).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

// releaseBranchLock releases the lock for a branch
func (w *Worker) releaseBranchLock(branchID uuid.UUID) {
	lockKey := fmt.Sprintf("branch-lock:%s", branchID.String())

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release branch lock", "error", err, "branch_id", branchID.String())
	}
}

// processRequest processes a single request using the ResolutionProcessor
func (w *Worker) processRequest(req *queuePkg.Request) error {
	w.log.Info("Processing request",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"branch_id", req.BranchID.String(),
	)

	start := time.Now()

	if err := w.broadcaster.PublishResolutionProcessing(w.ctx, req.BranchID, req.RequestID.String(), req.ChoiceID); err != nil {
		w.log.Error("Failed to publish processing event", "error", err)
		// Don't fail the request just because event publishing failed
	}

	switch req.Type {
	case queuePkg.RequestTypeResolve:
		result, err := w.processor.ProcessResolution(w.ctx, req.BranchID, req.ChoiceID)
		if err != nil {
			w.log.Error("Failed to process resolution",
				"error", err,
				"request_id", req.RequestID,
				"branch_id", req.BranchID.String(),
			)
			if pubErr := w.broadcaster.PublishResolutionFailed(w.ctx, req.BranchID, req.RequestID.String(), err.Error()); pubErr != nil {
				w.log.Error("Failed to publish failure event", "error", pubErr)
			}
			return fmt.Errorf("failed to process resolution: %w", err)
		}

		if result.Derailed && result.FiredHatch != nil {
			if err := w.broadcaster.PublishBranchDerailed(w.ctx, req.BranchID, result.FiredHatch.ID, result.Branch.Name); err != nil {
				w.log.Error("Failed to publish derailment event", "error", err)
			}
		}
		if result.Analysis.ButterflyStorm {
			if err := w.broadcaster.PublishStormWarning(w.ctx, req.BranchID,
				len(result.Analysis.EmergingEffects), result.Analysis.SystemicRisk); err != nil {
				w.log.Error("Failed to publish storm warning", "error", err)
			}
		}

		payload := map[string]interface{}{
			"episode":      result.Branch.CurrentEpisode,
			"derailed":     result.Derailed,
			"catalog_size": len(result.NextCatalog),
		}
		if err := w.broadcaster.PublishResolutionCompleted(w.ctx, req.BranchID, req.RequestID.String(), payload); err != nil {
			w.log.Error("Failed to publish completion event", "error", err)
		}

	case queuePkg.RequestTypeFork:
		fork, err := w.processor.ProcessFork(w.ctx, req.BranchID, req.ChoiceID)
		if err != nil {
			if pubErr := w.broadcaster.PublishResolutionFailed(w.ctx, req.BranchID, req.RequestID.String(), err.Error()); pubErr != nil {
				w.log.Error("Failed to publish failure event", "error", pubErr)
			}
			return fmt.Errorf("failed to process fork: %w", err)
		}

		payload := map[string]interface{}{
			"fork_id": fork.ID.String(),
		}
		if err := w.broadcaster.PublishResolutionCompleted(w.ctx, req.BranchID, req.RequestID.String(), payload); err != nil {
			w.log.Error("Failed to publish completion event", "error", err)
		}

	default:
		return fmt.Errorf("unknown request type: %s", req.Type)
	}

	w.log.Info("Request processed",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
