package butterfly

import (
	"testing"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// historyWithCascade builds a single history entry carrying one
// butterfly potential triggered at the given episode.
func historyWithCascade(choiceID string, episode, delay int, threshold float64, impact string, severity int) branch.HistoryEntry {
	return branch.HistoryEntry{
		Episode: episode,
		Choice:  narrative.Choice{ID: choiceID},
		Consequences: []narrative.Consequence{
			{
				Severity: severity,
				ButterflyPotential: []narrative.ButterflyPotential{
					{
						ProbabilityThreshold: threshold,
						CascadeDelay:         delay,
						UltimateImpact:       impact,
					},
				},
			},
		},
	}
}

func TestTrackClassification(t *testing.T) {
	history := []branch.HistoryEntry{
		// Due at episode 4; threshold 1.0 means the stored roll always passes.
		historyWithCascade("active-choice", 1, 3, 1.0, "the dam breaks", 7),
		// Due at episode 7; emerging at episode 5.
		historyWithCascade("emerging-choice", 3, 4, 1.0, "rumors spread", 4),
		// Triggered this episode; clock has not started.
		historyWithCascade("dormant-choice", 5, 3, 1.0, "a seed is planted", 2),
	}

	analysis := Track(history, branch.WorldState{}, 5)

	if len(analysis.ActiveEffects) != 1 {
		t.Fatalf("Expected 1 active effect, got %d", len(analysis.ActiveEffects))
	}
	if analysis.ActiveEffects[0].SourceChoice != "active-choice" {
		t.Errorf("Expected active effect from active-choice, got %q", analysis.ActiveEffects[0].SourceChoice)
	}
	if analysis.ActiveEffects[0].CurrentProbability != 1.0 {
		t.Errorf("Expected active probability 1.0, got %v", analysis.ActiveEffects[0].CurrentProbability)
	}

	if len(analysis.EmergingEffects) != 1 {
		t.Fatalf("Expected 1 emerging effect, got %d", len(analysis.EmergingEffects))
	}
	emerging := analysis.EmergingEffects[0]
	if emerging.SourceChoice != "emerging-choice" {
		t.Errorf("Expected emerging effect from emerging-choice, got %q", emerging.SourceChoice)
	}
	if emerging.CurrentProbability != 0.5 {
		t.Errorf("Expected emerging probability (5-3)/4 = 0.5, got %v", emerging.CurrentProbability)
	}
	if emerging.ExpectedManifestation != 7 {
		t.Errorf("Expected manifestation at episode 7, got %d", emerging.ExpectedManifestation)
	}
}

func TestTrackFailedRollStaysDormant(t *testing.T) {
	// Threshold 0 means the stored roll can never pass, even past the
	// manifestation episode.
	history := []branch.HistoryEntry{
		historyWithCascade("unlucky", 1, 2, 0.0, "nothing comes of it", 5),
	}

	analysis := Track(history, branch.WorldState{}, 10)

	if len(analysis.ActiveEffects) != 0 {
		t.Errorf("Expected no active effects for a failed roll, got %d", len(analysis.ActiveEffects))
	}
	if len(analysis.EmergingEffects) != 0 {
		t.Errorf("Expected no emerging effects past manifestation, got %d", len(analysis.EmergingEffects))
	}
	if analysis.SystemicRisk != 0 {
		t.Errorf("Expected zero systemic risk, got %v", analysis.SystemicRisk)
	}
}

func TestTrackDeterministic(t *testing.T) {
	history := []branch.HistoryEntry{
		historyWithCascade("a", 1, 3, 0.6, "impact a", 5),
		historyWithCascade("b", 2, 4, 0.6, "impact b", 3),
	}

	first := Track(history, branch.WorldState{}, 6)
	second := Track(history, branch.WorldState{}, 6)

	if len(first.ActiveEffects) != len(second.ActiveEffects) {
		t.Error("Active classification changed between identical evaluations")
	}
	if first.SystemicRisk != second.SystemicRisk {
		t.Errorf("Systemic risk changed between identical evaluations: %v vs %v",
			first.SystemicRisk, second.SystemicRisk)
	}
}

func TestTrackButterflyStorm(t *testing.T) {
	// Three cascades all at probability 3/4, above the storm bar.
	history := []branch.HistoryEntry{
		historyWithCascade("s1", 1, 4, 1.0, "first front", 5),
		historyWithCascade("s2", 1, 4, 1.0, "second front", 5),
		historyWithCascade("s3", 1, 4, 1.0, "third front", 5),
	}

	analysis := Track(history, branch.WorldState{}, 4)
	if !analysis.ButterflyStorm {
		t.Error("Expected 3 emerging effects above 0.7 to read as a storm")
	}

	// One episode earlier the probability is 0.5; no storm.
	analysis = Track(history, branch.WorldState{}, 3)
	if analysis.ButterflyStorm {
		t.Error("Expected no storm at probability 0.5")
	}
}

func TestSystemicRiskSeverityWeighted(t *testing.T) {
	// One active effect (prob 1.0, severity 9) and one emerging at
	// prob 0.5, severity 1. The weighted mean leans toward the severe one.
	history := []branch.HistoryEntry{
		historyWithCascade("heavy", 1, 2, 1.0, "the heavy impact", 9),
		historyWithCascade("light", 2, 2, 1.0, "the light impact", 1),
	}

	analysis := Track(history, branch.WorldState{}, 3)

	want := (1.0*9 + 0.5*1) / 10.0
	if diff := analysis.SystemicRisk - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected systemic risk %v, got %v", want, analysis.SystemicRisk)
	}
}

func TestTrackEmptyHistory(t *testing.T) {
	analysis := Track(nil, branch.WorldState{}, 5)
	if analysis.ButterflyStorm || analysis.SystemicRisk != 0 {
		t.Error("Expected empty analysis for empty history")
	}
	if len(analysis.ActiveEffects) != 0 || len(analysis.EmergingEffects) != 0 {
		t.Error("Expected no effects for empty history")
	}
}
