package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/pkg/convergence"
)

// Convergence schedule operations (Redis-backed)

func (r *RedisStorage) SaveConvergencePoints(ctx context.Context, id uuid.UUID, points []convergence.Point) error {
	data, err := json.Marshal(points)
	if err != nil {
		r.logger.Error("Failed to marshal convergence points", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal convergence points: %w", err)
	}

	key := "convergence:" + id.String()
	cmd := r.client.Set(ctx, key, string(data), branchTTL)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save convergence points", "uuid", id, "error", err)
		return fmt.Errorf("failed to save convergence points: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadConvergencePoints(ctx context.Context, id uuid.UUID) ([]convergence.Point, error) {
	key := "convergence:" + id.String()
	cmd := r.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to load convergence points", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load convergence points: %w", err)
	}

	var points []convergence.Point
	if err := json.Unmarshal([]byte(cmd.Val()), &points); err != nil {
		r.logger.Error("Failed to unmarshal convergence points", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal convergence points: %w", err)
	}

	return points, nil
}
