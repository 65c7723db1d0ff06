package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeResolutionQueued     EventType = "resolution.queued"
	EventTypeResolutionProcessing EventType = "resolution.processing"
	EventTypeResolutionCompleted  EventType = "resolution.completed"
	EventTypeResolutionFailed     EventType = "resolution.failed"
	EventTypeBranchDerailed       EventType = "branch.derailed"
	EventTypeStormWarning         EventType = "butterfly.storm_warning"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType              `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	BranchID  string                 `json:"branch_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ChannelFor returns the pub/sub channel name for a branch.
func ChannelFor(branchID uuid.UUID) string {
	return fmt.Sprintf("branch-events:%s", branchID.String())
}

// PublishResolutionQueued publishes a resolution.queued event
func (b *Broadcaster) PublishResolutionQueued(ctx context.Context, branchID uuid.UUID, requestID string, choiceID string) error {
	event := Event{
		Type:      EventTypeResolutionQueued,
		RequestID: requestID,
		BranchID:  branchID.String(),
		Data: map[string]interface{}{
			"status":    "queued",
			"choice_id": choiceID,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// PublishResolutionProcessing publishes a resolution.processing event
func (b *Broadcaster) PublishResolutionProcessing(ctx context.Context, branchID uuid.UUID, requestID string, choiceID string) error {
	event := Event{
		Type:      EventTypeResolutionProcessing,
		RequestID: requestID,
		BranchID:  branchID.String(),
		Data: map[string]interface{}{
			"status":    "processing",
			"choice_id": choiceID,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// PublishResolutionCompleted publishes a resolution.completed event
func (b *Broadcaster) PublishResolutionCompleted(ctx context.Context, branchID uuid.UUID, requestID string, result map[string]interface{}) error {
	event := Event{
		Type:      EventTypeResolutionCompleted,
		RequestID: requestID,
		BranchID:  branchID.String(),
		Data: map[string]interface{}{
			"status": "completed",
			"result": result,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// PublishResolutionFailed publishes a resolution.failed event
func (b *Broadcaster) PublishResolutionFailed(ctx context.Context, branchID uuid.UUID, requestID string, errorMsg string) error {
	event := Event{
		Type:      EventTypeResolutionFailed,
		RequestID: requestID,
		BranchID:  branchID.String(),
		Data: map[string]interface{}{
			"status": "failed",
			"error":  errorMsg,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// PublishBranchDerailed publishes a branch.derailed event
func (b *Broadcaster) PublishBranchDerailed(ctx context.Context, branchID uuid.UUID, hatchID string, newDirection string) error {
	event := Event{
		Type:     EventTypeBranchDerailed,
		BranchID: branchID.String(),
		Data: map[string]interface{}{
			"hatch_id":      hatchID,
			"new_direction": newDirection,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// PublishStormWarning publishes a butterfly.storm_warning event
func (b *Broadcaster) PublishStormWarning(ctx context.Context, branchID uuid.UUID, emergingCount int, systemicRisk float64) error {
	event := Event{
		Type:     EventTypeStormWarning,
		BranchID: branchID.String(),
		Data: map[string]interface{}{
			"emerging_count": emergingCount,
			"systemic_risk":  systemicRisk,
		},
	}
	return b.publishToBranch(ctx, branchID, event)
}

// Subscribe opens a pub/sub subscription for one branch's events. The
// caller owns the returned PubSub and must Close it.
func (b *Broadcaster) Subscribe(ctx context.Context, branchID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, ChannelFor(branchID))
}

// publishToBranch publishes an event to the branch-specific channel
func (b *Broadcaster) publishToBranch(ctx context.Context, branchID uuid.UUID, event Event) error {
	channel := ChannelFor(branchID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
