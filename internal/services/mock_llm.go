package services

import (
	"context"
	"sync"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc                func(ctx context.Context, modelName string) error
	GenerateNarrativeContentFunc func(ctx context.Context, prompt string) (string, error)
	IsModelReadyFunc             func(ctx context.Context, modelName string) (bool, error)

	// Track calls for testing
	InitModelCalls                []string
	GenerateNarrativeContentCalls []string
	IsModelReadyCalls             []string

	mu sync.Mutex // protects all fields above
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:                make([]string, 0),
		GenerateNarrativeContentCalls: make([]string, 0),
		IsModelReadyCalls:             make([]string, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// GenerateNarrativeContent mocks prose generation
func (m *MockLLMAPI) GenerateNarrativeContent(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateNarrativeContentCalls = append(m.GenerateNarrativeContentCalls, prompt)

	if m.GenerateNarrativeContentFunc != nil {
		return m.GenerateNarrativeContentFunc(ctx, prompt)
	}
	return "The moment hangs in the air, waiting for you to act.", nil
}

// IsModelReady mocks readiness checks
func (m *MockLLMAPI) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IsModelReadyCalls = append(m.IsModelReadyCalls, modelName)

	if m.IsModelReadyFunc != nil {
		return m.IsModelReadyFunc(ctx, modelName)
	}
	return true, nil
}
