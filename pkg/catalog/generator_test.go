package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

func testPremise() *narrative.Premise {
	return &narrative.Premise{
		ID:        "test_premise",
		Title:     "Test Premise",
		Genre:     "noir",
		Statement: "Trust is a luxury",
		Themes:    []string{"betrayal", "loyalty"},
	}
}

func resolvedChoice() narrative.Choice {
	return narrative.Choice{
		ID:        "opening",
		Text:      "Take the case",
		Type:      narrative.ChoiceTypePremiseTesting,
		Magnitude: narrative.MagnitudeMajor,
		Scope:     narrative.ScopeInterpersonal,
		BranchingPotential: narrative.BranchingPotential{
			BranchCount:           3,
			DivergenceLevel:       "moderate",
			ConvergenceLikelihood: 0.6,
		},
	}
}

func TestGenerateFollowUps(t *testing.T) {
	g := NewGenerator()
	b := branch.New(testPremise())

	choices := g.GenerateFollowUps(resolvedChoice(), b, testPremise())
	if len(choices) != 3 {
		t.Fatalf("Expected 3 follow-ups for a premise-testing choice, got %d", len(choices))
	}

	for _, c := range choices {
		if err := c.Validate(); err != nil {
			t.Errorf("Generated choice %s fails validation: %v", c.ID, err)
		}
		if !strings.HasPrefix(c.ID, "opening-f") {
			t.Errorf("Expected follow-up id derived from the resolved choice, got %q", c.ID)
		}
	}
}

func TestGenerateFollowUpsDeterministic(t *testing.T) {
	g := NewGenerator()
	prev := resolvedChoice()

	first := g.GenerateFollowUps(prev, branch.New(testPremise()), testPremise())
	second := g.GenerateFollowUps(prev, branch.New(testPremise()), testPremise())

	if len(first) != len(second) {
		t.Fatalf("Catalog size differs across identical states: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("Choice %d text differs across identical states: %q vs %q", i, first[i].Text, second[i].Text)
		}
		if first[i].Consequences[0].Severity != second[i].Consequences[0].Severity {
			t.Errorf("Choice %d severity differs across identical states", i)
		}
	}
}

func TestGenerateFollowUpsDivergeWithState(t *testing.T) {
	g := NewGenerator()
	prev := resolvedChoice()

	base := branch.New(testPremise())
	advanced := branch.New(testPremise())
	advanced.AdvanceEpisode()
	advanced.AdvancePremise(30)

	if stateSeed(prev, base) == stateSeed(prev, advanced) {
		t.Error("Expected different state to reseed the catalog")
	}
	// The generator must still produce a full, valid catalog from the
	// advanced state.
	for _, c := range g.GenerateFollowUps(prev, advanced, testPremise()) {
		if err := c.Validate(); err != nil {
			t.Errorf("Generated choice %s fails validation: %v", c.ID, err)
		}
	}
}

func TestGenerateFollowUpsTerminal(t *testing.T) {
	g := NewGenerator()
	b := branch.New(testPremise())

	prev := resolvedChoice()
	prev.BranchingPotential.BranchCount = 0
	if choices := g.GenerateFollowUps(prev, b, testPremise()); choices != nil {
		t.Error("Expected nil catalog when the resolved choice has no branches")
	}
}

func TestEmergencySeeds_AuthoredWin(t *testing.T) {
	g := NewGenerator()
	b := branch.New(testPremise())

	hatch := &narrative.EscapeHatch{
		ID: "dark-bargain",
		EmergencyNarrative: narrative.EmergencyNarrative{
			SeedChoices: []narrative.Choice{
				{ID: "accept", Text: "Accept"},
				{ID: "refuse", Text: "Refuse"},
			},
		},
	}

	seeds := g.EmergencySeeds(hatch, b)
	if len(seeds) != 2 || seeds[0].ID != "accept" {
		t.Errorf("Expected authored seed choices verbatim, got %+v", seeds)
	}
}

func TestEmergencySeeds_Generated(t *testing.T) {
	g := NewGenerator()
	b := branch.New(testPremise())

	hatch := &narrative.EscapeHatch{
		ID: "dark-bargain",
		NewStoryDirection: narrative.StoryDirection{
			Genre: "folk tragedy",
		},
	}

	seeds := g.EmergencySeeds(hatch, b)
	if len(seeds) != 2 {
		t.Fatalf("Expected 2 generated seeds, got %d", len(seeds))
	}
	if seeds[0].ID != "dark-bargain-embrace" || seeds[1].ID != "dark-bargain-anchor" {
		t.Errorf("Expected hatch-derived seed ids, got %q and %q", seeds[0].ID, seeds[1].ID)
	}
	if !strings.Contains(seeds[0].Text, "folk tragedy") {
		t.Errorf("Expected the new genre woven into the seed text, got %q", seeds[0].Text)
	}
}

// stubContent satisfies ContentService for enrichment tests.
type stubContent struct {
	text string
	err  error
}

func (s *stubContent) GenerateNarrativeContent(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

func TestEnrich(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := branch.New(testPremise())
	choices := []narrative.Choice{{ID: "c1", Text: "template text"}}

	out, err := Enrich(context.Background(), &stubContent{text: "You step into the rain."}, choices, b, testPremise(), logger)
	if err != nil {
		t.Fatalf("Expected clean enrichment, got: %v", err)
	}
	if out[0].Text != "You step into the rain." {
		t.Errorf("Expected enriched text, got %q", out[0].Text)
	}
	if choices[0].Text != "template text" {
		t.Error("Enrich mutated its input slice")
	}
}

func TestEnrich_DegradesOnError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := branch.New(testPremise())
	choices := []narrative.Choice{{ID: "c1", Text: "template text"}}

	out, err := Enrich(context.Background(), &stubContent{err: errors.New("model offline")}, choices, b, testPremise(), logger)
	if out[0].Text != "template text" {
		t.Errorf("Expected template text kept on generation failure, got %q", out[0].Text)
	}
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Errorf("Expected ErrGenerationUnavailable on failed generation, got: %v", err)
	}

	out, err = Enrich(context.Background(), &stubContent{text: "   "}, choices, b, testPremise(), logger)
	if out[0].Text != "template text" {
		t.Errorf("Expected template text kept on blank generation, got %q", out[0].Text)
	}
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Errorf("Expected ErrGenerationUnavailable on blank generation, got: %v", err)
	}
}

func TestEnrich_NilService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := branch.New(testPremise())
	choices := []narrative.Choice{{ID: "c1", Text: "template text"}}

	out, err := Enrich(context.Background(), nil, choices, b, testPremise(), logger)
	if err != nil {
		t.Fatalf("A missing content service is not a degradation: %v", err)
	}
	if out[0].Text != "template text" {
		t.Error("Expected choices untouched with no content service")
	}
}
