// Package butterfly derives cascade analysis from a branch's choice
// history. The tracker is pure: it never mutates branch state, and two
// calls over the same history and episode produce identical results.
package butterfly

import (
	"hash/fnv"

	"github.com/jwebster45206/branch-engine/pkg/branch"
)

const (
	// StormProbability is the emergence probability a cascade must
	// exceed to count toward a butterfly storm.
	StormProbability = 0.7

	// StormCount is how many such cascades must be emerging at once.
	StormCount = 3
)

// Effect is one butterfly cascade, either already manifested (active)
// or building toward its manifestation episode (emerging).
type Effect struct {
	SourceChoice          string  `json:"source_choice"`
	UltimateImpact        string  `json:"ultimate_impact"`
	Severity              int     `json:"severity"` // severity of the originating consequence
	TriggerEpisode        int     `json:"trigger_episode"`
	ExpectedManifestation int     `json:"expected_manifestation"` // trigger episode + cascade delay
	CurrentProbability    float64 `json:"current_probability"`
}

// Analysis is the derived butterfly state for one evaluation. It is
// never persisted; callers recompute it per episode.
type Analysis struct {
	ActiveEffects   []Effect `json:"active_effects,omitempty"`
	EmergingEffects []Effect `json:"emerging_effects,omitempty"`
	SystemicRisk    float64  `json:"systemic_risk"` // aggregate, in [0,1]
	ButterflyStorm  bool     `json:"butterfly_storm"`
}

// Track classifies every butterfly potential in the history as active,
// emerging, or dormant for the given episode. Dormant potentials are
// excluded from the output. Each potential lands in exactly one class.
func Track(history []branch.HistoryEntry, ws branch.WorldState, currentEpisode int) Analysis {
	var analysis Analysis

	for _, entry := range history {
		for _, cons := range entry.Consequences {
			for _, bp := range cons.ButterflyPotential {
				manifest := entry.Episode + bp.CascadeDelay
				eff := Effect{
					SourceChoice:          entry.Choice.ID,
					UltimateImpact:        bp.UltimateImpact,
					Severity:              cons.Severity,
					TriggerEpisode:        entry.Episode,
					ExpectedManifestation: manifest,
				}

				switch {
				case currentEpisode >= manifest:
					// Due. The stored roll decides whether it ever
					// manifests; a failed roll stays dormant forever.
					if storedRoll(entry.Choice.ID, bp.UltimateImpact) < bp.ProbabilityThreshold {
						eff.CurrentProbability = 1.0
						analysis.ActiveEffects = append(analysis.ActiveEffects, eff)
					}
				case currentEpisode > entry.Episode:
					// Probability ramps linearly toward the
					// manifestation episode.
					eff.CurrentProbability = float64(currentEpisode-entry.Episode) / float64(bp.CascadeDelay)
					analysis.EmergingEffects = append(analysis.EmergingEffects, eff)
				default:
					// Dormant: the cascade clock has not started.
				}
			}
		}
	}

	analysis.SystemicRisk = systemicRisk(analysis.ActiveEffects, analysis.EmergingEffects)
	analysis.ButterflyStorm = isStorm(analysis.EmergingEffects)
	return analysis
}

// systemicRisk is the severity-weighted mean probability across all
// active and emerging effects.
func systemicRisk(active, emerging []Effect) float64 {
	var weighted, weight float64
	for _, eff := range active {
		weighted += eff.CurrentProbability * float64(eff.Severity)
		weight += float64(eff.Severity)
	}
	for _, eff := range emerging {
		weighted += eff.CurrentProbability * float64(eff.Severity)
		weight += float64(eff.Severity)
	}
	if weight == 0 {
		return 0
	}
	return weighted / weight
}

// isStorm reports whether enough cascades are emerging at high
// probability simultaneously.
func isStorm(emerging []Effect) bool {
	count := 0
	for _, eff := range emerging {
		if eff.CurrentProbability > StormProbability {
			count++
		}
	}
	return count >= StormCount
}

// storedRoll is the deterministic stand-in for the probability roll
// made when the cascade was authored. Hashing the source choice and
// impact keeps the outcome stable across evaluations, so a cascade
// that resolved true stays true.
func storedRoll(choiceID, impact string) float64 {
	h := fnv.New64a()
	h.Write([]byte(choiceID))
	h.Write([]byte{0})
	h.Write([]byte(impact))
	return float64(h.Sum64()%1_000_000) / 1_000_000
}
