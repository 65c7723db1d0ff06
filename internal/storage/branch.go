package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/pkg/branch"
)

// Branch state operations (Redis-backed)

func (r *RedisStorage) SaveBranchState(ctx context.Context, id uuid.UUID, b *branch.BranchState) error {
	b.UpdatedAt = time.Now()

	data, err := json.Marshal(b)
	if err != nil {
		r.logger.Error("Failed to marshal branch state", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal branch state: %w", err)
	}

	key := "branch:" + id.String()
	cmd := r.client.Set(ctx, key, string(data), branchTTL)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save branch state", "uuid", id, "error", err)
		return fmt.Errorf("failed to save branch state: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadBranchState(ctx context.Context, id uuid.UUID) (*branch.BranchState, error) {
	key := "branch:" + id.String()
	cmd := r.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			r.logger.Warn("Branch state not found", "uuid", id)
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load branch state", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load branch state: %w", err)
	}

	data := cmd.Val()
	if data == "" {
		r.logger.Warn("Branch state not found", "uuid", id)
		return nil, nil
	}

	var b branch.BranchState
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		r.logger.Error("Failed to unmarshal branch state", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal branch state: %w", err)
	}

	return &b, nil
}

func (r *RedisStorage) DeleteBranchState(ctx context.Context, id uuid.UUID) error {
	keys := []string{
		"branch:" + id.String(),
		"catalog:" + id.String(),
		"convergence:" + id.String(),
	}
	cmd := r.client.Del(ctx, keys...)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to delete branch state", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete branch state: %w", err)
	}
	return nil
}
