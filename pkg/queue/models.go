package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies what a queued request asks the worker to do.
type RequestType string

const (
	// RequestTypeResolve resolves a selected choice against a branch.
	RequestTypeResolve RequestType = "resolve"

	// RequestTypeFork forks a branch at a choice into a new timeline.
	RequestTypeFork RequestType = "fork"
)

// Request is one unit of work on the global resolve queue.
type Request struct {
	RequestID uuid.UUID   `json:"request_id"`
	Type      RequestType `json:"type"`
	BranchID  uuid.UUID   `json:"branch_id"`
	ChoiceID  string      `json:"choice_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewResolveRequest builds a resolve request for a branch and choice.
func NewResolveRequest(branchID uuid.UUID, choiceID string) *Request {
	return &Request{
		RequestID: uuid.New(),
		Type:      RequestTypeResolve,
		BranchID:  branchID,
		ChoiceID:  choiceID,
		CreatedAt: time.Now(),
	}
}

// ToJSON serializes the request for the queue.
func (r *Request) ToJSON() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a queued request.
func FromJSON(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &r, nil
}
