package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/archive"
	"github.com/jwebster45206/branch-engine/internal/services"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/catalog"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/escape"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPremise() *narrative.Premise {
	return &narrative.Premise{
		ID:        "test_premise",
		Title:     "Test Premise",
		Genre:     "noir",
		Statement: "Trust is a luxury",
		Themes:    []string{"betrayal"},
		OpeningChoices: []narrative.Choice{
			{
				ID:        "opening",
				Text:      "Take the case",
				Type:      narrative.ChoiceTypePremiseTesting,
				Magnitude: narrative.MagnitudeModerate,
				Scope:     narrative.ScopeInterpersonal,
				BranchingPotential: narrative.BranchingPotential{
					BranchCount:           2,
					DivergenceLevel:       "moderate",
					ConvergenceLikelihood: 0.5,
				},
			},
		},
	}
}

func newProcessor(store storage.Storage, llm services.LLMService, chronicle *archive.DB) *ResolutionProcessor {
	logger := discardLogger()
	orchestrator := engine.New(
		catalog.NewGenerator(),
		escape.NewEvaluator(escape.DefaultFireThreshold, nil, logger),
		convergence.NewPlanner(),
		engine.Config{},
		logger,
	)
	return NewResolutionProcessor(store, orchestrator, llm, chronicle, logger)
}

func seedBranch(t *testing.T, store *storage.MockStorage) *branch.BranchState {
	t.Helper()
	premise := testPremise()
	store.AddPremise(premise)

	b := branch.New(premise)
	ctx := context.Background()
	if err := store.SaveBranchState(ctx, b.ID, b); err != nil {
		t.Fatalf("Failed to seed branch: %v", err)
	}
	if err := store.SaveCatalog(ctx, b.ID, premise.OpeningChoices); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}
	return b
}

func TestProcessResolution(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)
	b := seedBranch(t, store)
	ctx := context.Background()

	result, err := p.ProcessResolution(ctx, b.ID, "opening")
	if err != nil {
		t.Fatalf("Expected resolution to succeed, got: %v", err)
	}
	if result.Branch.CurrentEpisode != 2 {
		t.Errorf("Expected episode 2, got %d", result.Branch.CurrentEpisode)
	}

	saved, err := store.LoadBranchState(ctx, b.ID)
	if err != nil || saved == nil {
		t.Fatal("Expected resolved branch persisted")
	}
	if saved.CurrentEpisode != 2 || len(saved.ChoiceHistory) != 1 {
		t.Errorf("Persisted branch out of date: episode %d, %d history entries",
			saved.CurrentEpisode, len(saved.ChoiceHistory))
	}

	next, err := store.LoadCatalog(ctx, b.ID)
	if err != nil || len(next) == 0 {
		t.Error("Expected the next catalog persisted")
	}
}

func TestProcessResolution_PersistsScheduledPoint(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)
	premise := testPremise()
	premise.OpeningChoices[0].Magnitude = narrative.MagnitudeMajor
	premise.OpeningChoices[0].Scope = narrative.ScopeGlobal
	store.AddPremise(premise)

	b := branch.New(premise)
	ctx := context.Background()
	if err := store.SaveBranchState(ctx, b.ID, b); err != nil {
		t.Fatalf("Failed to seed branch: %v", err)
	}
	if err := store.SaveCatalog(ctx, b.ID, premise.OpeningChoices); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}

	result, err := p.ProcessResolution(ctx, b.ID, "opening")
	if err != nil {
		t.Fatalf("Expected resolution to succeed, got: %v", err)
	}
	if result.ScheduledPoint == nil {
		t.Fatal("Expected the major global choice to schedule a convergence point")
	}

	points, err := store.LoadConvergencePoints(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to load convergence points: %v", err)
	}
	if len(points) != 1 || points[0].ID != "aftermath-opening" {
		t.Errorf("Expected the scheduled point persisted, got %+v", points)
	}
}

func TestProcessResolution_BranchNotFound(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)

	if _, err := p.ProcessResolution(context.Background(), uuid.New(), "opening"); err == nil {
		t.Error("Expected error for unknown branch")
	}
}

func TestProcessResolution_ErrorSavesNothing(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)
	b := seedBranch(t, store)
	ctx := context.Background()

	_, err := p.ProcessResolution(ctx, b.ID, "not-offered")
	if !errors.Is(err, engine.ErrChoiceNotFound) {
		t.Fatalf("Expected ErrChoiceNotFound, got: %v", err)
	}

	saved, _ := store.LoadBranchState(ctx, b.ID)
	if saved.CurrentEpisode != 1 || len(saved.ChoiceHistory) != 0 {
		t.Error("Failed resolution must leave the stored branch as last-good state")
	}
}

func TestProcessResolution_EnrichesWithLLM(t *testing.T) {
	store := storage.NewMockStorage()
	mockLLM := services.NewMockLLMAPI()
	mockLLM.GenerateNarrativeContentFunc = func(ctx context.Context, prompt string) (string, error) {
		return "You step deeper into the dark.", nil
	}
	p := newProcessor(store, mockLLM, nil)
	b := seedBranch(t, store)

	result, err := p.ProcessResolution(context.Background(), b.ID, "opening")
	if err != nil {
		t.Fatalf("Expected resolution to succeed, got: %v", err)
	}
	for _, c := range result.NextCatalog {
		if c.Text != "You step deeper into the dark." {
			t.Errorf("Expected enriched text on %s, got %q", c.ID, c.Text)
		}
	}
}

func TestProcessResolution_DegradesWhenLLMFails(t *testing.T) {
	store := storage.NewMockStorage()
	mockLLM := services.NewMockLLMAPI()
	mockLLM.GenerateNarrativeContentFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model offline")
	}
	p := newProcessor(store, mockLLM, nil)
	b := seedBranch(t, store)

	result, err := p.ProcessResolution(context.Background(), b.ID, "opening")
	if err != nil {
		t.Fatalf("Enrichment failure must not fail resolution, got: %v", err)
	}
	if len(result.NextCatalog) == 0 {
		t.Fatal("Expected a catalog despite enrichment failure")
	}
	for _, c := range result.NextCatalog {
		if c.Text == "" {
			t.Errorf("Expected template text preserved on %s", c.ID)
		}
	}
}

func TestProcessResolution_Chronicles(t *testing.T) {
	store := storage.NewMockStorage()
	chronicle, err := archive.Open(t.TempDir() + "/chronicle.db")
	if err != nil {
		t.Fatalf("Failed to open chronicle: %v", err)
	}
	defer chronicle.Close()

	p := newProcessor(store, nil, chronicle)
	b := seedBranch(t, store)
	ctx := context.Background()

	if _, err := p.ProcessResolution(ctx, b.ID, "opening"); err != nil {
		t.Fatalf("Expected resolution to succeed, got: %v", err)
	}

	entries, err := chronicle.ListByBranch(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to list chronicle: %v", err)
	}
	if len(entries) != 1 || entries[0].ChoiceID != "opening" {
		t.Errorf("Expected the resolution chronicled, got %+v", entries)
	}
}

func TestProcessFork(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)
	b := seedBranch(t, store)
	ctx := context.Background()

	fork, err := p.ProcessFork(ctx, b.ID, "opening")
	if err != nil {
		t.Fatalf("Expected fork to succeed, got: %v", err)
	}
	if fork.ID == b.ID {
		t.Error("Expected the fork to get its own ID")
	}
	if fork.OriginChoice != "opening" {
		t.Errorf("Expected origin choice recorded, got %q", fork.OriginChoice)
	}

	savedFork, err := store.LoadBranchState(ctx, fork.ID)
	if err != nil || savedFork == nil {
		t.Fatal("Expected the fork persisted")
	}
	forkCatalog, err := store.LoadCatalog(ctx, fork.ID)
	if err != nil || len(forkCatalog) != 1 {
		t.Error("Expected the fork to start from the parent's catalog")
	}
}

func TestProcessFork_BranchNotFound(t *testing.T) {
	store := storage.NewMockStorage()
	p := newProcessor(store, nil, nil)

	if _, err := p.ProcessFork(context.Background(), uuid.New(), "opening"); err == nil {
		t.Error("Expected error for unknown branch")
	}
}
