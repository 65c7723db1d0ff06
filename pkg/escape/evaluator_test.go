package escape

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// scriptedRand feeds a fixed sequence of draws to the evaluator.
type scriptedRand struct {
	draws []float64
	next  int
}

func (r *scriptedRand) Float64() float64 {
	if r.next >= len(r.draws) {
		return 0.5
	}
	v := r.draws[r.next]
	r.next++
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHatch() narrative.EscapeHatch {
	return narrative.EscapeHatch{
		ID:              "dark-bargain",
		TriggerChoice:   "douse-lamp",
		EscapeType:      narrative.EscapeGenreShift,
		DerailmentLevel: narrative.DerailmentThematic,
		ActivationRequirements: []narrative.ActivationRequirement{
			{Condition: "fact:lamp_lit", Probability: 1.0},
			{Condition: "derailment_risk >= 3", Probability: 0.75},
		},
		NewStoryDirection: narrative.StoryDirection{
			Genre:   "folk tragedy",
			Premise: "A bargain once struck must be kept",
		},
		EmergencyNarrative: narrative.EmergencyNarrative{
			FallbackPlot: "The Voice Below offers a trade",
		},
		Shift: narrative.ThematicShift{From: "duty", To: "mercy"},
	}
}

func testBranchWithHatch(h narrative.EscapeHatch) *branch.BranchState {
	b := branch.New(&narrative.Premise{
		ID:        "test_premise",
		Genre:     "cosmic horror",
		Statement: "Duty survives indifference",
	})
	b.SetFact("lamp_lit", true)
	b.DerailmentRisk = 5
	b.EscapeHatches = []narrative.EscapeHatch{h}
	return b
}

func TestEvaluate_NoHatchForChoice(t *testing.T) {
	e := NewEvaluator(0.7, &scriptedRand{}, discardLogger())
	b := testBranchWithHatch(testHatch())

	if out := e.Evaluate(b, "radio-mainland"); out != nil {
		t.Error("Expected nil outcome for a choice with no armed hatch")
	}
}

func TestEvaluate_Fires(t *testing.T) {
	// Draw 1: requirement probability 0.75, 0.5 < 0.75 passes.
	// Draw 2: fire draw 0.9 > 0.7 fires.
	e := NewEvaluator(0.7, &scriptedRand{draws: []float64{0.5, 0.9}}, discardLogger())
	b := testBranchWithHatch(testHatch())

	out := e.Evaluate(b, "douse-lamp")
	if out == nil {
		t.Fatal("Expected an outcome for the armed hatch")
	}
	if !out.Fired {
		t.Error("Expected hatch to fire")
	}
	if out.Expired {
		t.Error("A fired hatch is not expired")
	}
}

func TestEvaluate_RequirementDrawFails(t *testing.T) {
	// Requirement draw 0.8 >= 0.75 fails gating before the fire draw.
	e := NewEvaluator(0.7, &scriptedRand{draws: []float64{0.8}}, discardLogger())
	b := testBranchWithHatch(testHatch())

	out := e.Evaluate(b, "douse-lamp")
	if out == nil || out.Fired || out.Expired {
		t.Errorf("Expected gating to fail quietly, got %+v", out)
	}
	if len(b.EscapeHatches) != 1 {
		t.Error("Failed gating must leave the hatch armed")
	}
}

func TestEvaluate_ConditionFails(t *testing.T) {
	e := NewEvaluator(0.7, &scriptedRand{}, discardLogger())
	b := testBranchWithHatch(testHatch())
	b.DerailmentRisk = 1 // below the >= 3 gate

	out := e.Evaluate(b, "douse-lamp")
	if out == nil || out.Fired {
		t.Error("Expected hatch not to fire when a condition fails")
	}
}

func TestEvaluate_ExpiresWhenDrawFailsAndNotReevaluable(t *testing.T) {
	// Gating passes, fire draw 0.3 <= 0.7 fails.
	e := NewEvaluator(0.7, &scriptedRand{draws: []float64{0.5, 0.3}}, discardLogger())
	b := testBranchWithHatch(testHatch())

	out := e.Evaluate(b, "douse-lamp")
	if out == nil {
		t.Fatal("Expected an outcome")
	}
	if out.Fired {
		t.Error("Expected fire draw 0.3 not to fire")
	}
	if !out.Expired {
		t.Error("Expected non-reevaluable hatch to expire on a failed draw")
	}
	if len(b.EscapeHatches) != 0 {
		t.Error("Expected expired hatch removed from the branch")
	}
}

func TestEvaluate_ReevaluableHatchSurvivesFailedDraw(t *testing.T) {
	h := testHatch()
	h.Reevaluable = true
	e := NewEvaluator(0.7, &scriptedRand{draws: []float64{0.5, 0.3}}, discardLogger())
	b := testBranchWithHatch(h)

	out := e.Evaluate(b, "douse-lamp")
	if out.Expired {
		t.Error("Reevaluable hatch must not expire on a failed draw")
	}
	if len(b.EscapeHatches) != 1 {
		t.Error("Reevaluable hatch must stay armed")
	}
}

func TestEvaluate_ZeroThresholdAlwaysFires(t *testing.T) {
	// An operator-set threshold of 0 means any positive draw fires.
	e := NewEvaluator(0, &scriptedRand{draws: []float64{0.5, 0.01}}, discardLogger())
	b := testBranchWithHatch(testHatch())

	out := e.Evaluate(b, "douse-lamp")
	if out == nil || !out.Fired {
		t.Error("Expected a zero threshold to fire on a 0.01 draw")
	}
}

func TestEvaluate_MisconfiguredCondition(t *testing.T) {
	h := testHatch()
	h.ActivationRequirements = []narrative.ActivationRequirement{
		{Condition: "phase_of_moon == full", Probability: 1.0},
	}
	e := NewEvaluator(0.7, &scriptedRand{draws: []float64{0.99}}, discardLogger())
	b := testBranchWithHatch(h)

	out := e.Evaluate(b, "douse-lamp")
	if out == nil {
		t.Fatal("Expected an outcome")
	}
	if !out.Misconfigured {
		t.Error("Expected unknown condition to mark the outcome misconfigured")
	}
	if out.Fired {
		t.Error("Misconfigured hatch must never fire")
	}
}

func TestApplyDerailment(t *testing.T) {
	e := NewEvaluator(0.7, &scriptedRand{}, discardLogger())
	b := testBranchWithHatch(testHatch())
	b.DerailmentRisk = 8
	h := testHatch()

	e.ApplyDerailment(b, &h)

	if b.Name != "A bargain once struck must be kept" {
		t.Errorf("Expected branch renamed to the new premise, got %q", b.Name)
	}
	if b.Description != "The Voice Below offers a trade" {
		t.Errorf("Expected description from the fallback plot, got %q", b.Description)
	}
	if b.ThematicShift != "duty to mercy" {
		t.Errorf("Expected thematic shift recorded, got %q", b.ThematicShift)
	}
	if b.DerailmentRisk != 0 {
		t.Error("Derailment must reset derailment risk")
	}
	if b.EscapeHatches != nil {
		t.Error("Derailment must clear all armed hatches")
	}
}

func TestApplyDerailment_GenreFallbackName(t *testing.T) {
	e := NewEvaluator(0.7, &scriptedRand{}, discardLogger())
	b := testBranchWithHatch(testHatch())
	h := testHatch()
	h.NewStoryDirection.Premise = ""

	e.ApplyDerailment(b, &h)
	if b.Name != "folk tragedy" {
		t.Errorf("Expected genre used as the name fallback, got %q", b.Name)
	}
}

func TestEvalCondition(t *testing.T) {
	b := testBranchWithHatch(testHatch())
	b.WorldState.PremiseProgression = 40
	b.CurrentEpisode = 6
	b.AdjustStress("Edith Harrow", 7)

	tests := []struct {
		condition string
		want      bool
	}{
		{"fact:lamp_lit", true},
		{"fact:missing", false},
		{"premise_progression >= 40", true},
		{"premise_progression > 40", false},
		{"premise_progression <= 39", false},
		{"derailment_risk >= 3", true},
		{"episode < 10", true},
		{"stress:Edith Harrow >= 5", true},
		{"stress:Nobody >= 1", false},
	}

	for _, tt := range tests {
		got, err := evalCondition(b, tt.condition)
		if err != nil {
			t.Errorf("evalCondition(%q) returned error: %v", tt.condition, err)
			continue
		}
		if got != tt.want {
			t.Errorf("evalCondition(%q) = %v, want %v", tt.condition, got, tt.want)
		}
	}
}

func TestEvalCondition_Unknown(t *testing.T) {
	b := testBranchWithHatch(testHatch())

	for _, cond := range []string{"", "weather == rain", "derailment_risk >= lots"} {
		if _, err := evalCondition(b, cond); err == nil {
			t.Errorf("Expected error for condition %q", cond)
		}
	}
}
