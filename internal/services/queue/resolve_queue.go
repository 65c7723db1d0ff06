package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/pkg/queue"
)

// requestsKey is the single global work queue all workers consume.
const requestsKey = "requests"

// ResolveQueue manages the global queue of resolution requests.
type ResolveQueue struct {
	client *Client
}

func NewResolveQueue(client *Client) *ResolveQueue {
	return &ResolveQueue{
		client: client,
	}
}

// EnqueueRequest adds a request to the global requests queue
func (rq *ResolveQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	err = rq.client.rdb.RPush(ctx, requestsKey, data).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// DequeueRequest removes and returns the next request from the global queue.
// Returns nil if queue is empty.
func (rq *ResolveQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := rq.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	return req, nil
}

// BlockingDequeueRequest blocks until a request is available, then returns it.
func (rq *ResolveQueue) BlockingDequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := rq.client.rdb.BLPop(ctx, 0, requestsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	return req, nil
}

// RequestQueueDepth returns the number of requests in the global queue
func (rq *ResolveQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := rq.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}
