package services

import (
	"context"
)

// LLMService defines the interface for the generative narrative
// collaborator. It satisfies catalog.ContentService.
type LLMService interface {
	// InitModel initializes the model on startup
	InitModel(ctx context.Context, modelName string) error

	// GenerateNarrativeContent produces prose for a single prompt
	GenerateNarrativeContent(ctx context.Context, prompt string) (string, error)

	// IsModelReady checks if the specified model is ready for use
	IsModelReady(ctx context.Context, modelName string) (bool, error)
}
