package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// Offered catalog operations (Redis-backed). The catalog is replaced
// wholesale on every resolution.

func (r *RedisStorage) SaveCatalog(ctx context.Context, id uuid.UUID, choices []narrative.Choice) error {
	data, err := json.Marshal(choices)
	if err != nil {
		r.logger.Error("Failed to marshal catalog", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	key := "catalog:" + id.String()
	cmd := r.client.Set(ctx, key, string(data), branchTTL)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save catalog", "uuid", id, "error", err)
		return fmt.Errorf("failed to save catalog: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadCatalog(ctx context.Context, id uuid.UUID) ([]narrative.Choice, error) {
	key := "catalog:" + id.String()
	cmd := r.client.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to load catalog", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	var choices []narrative.Choice
	if err := json.Unmarshal([]byte(cmd.Val()), &choices); err != nil {
		r.logger.Error("Failed to unmarshal catalog", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	return choices, nil
}
