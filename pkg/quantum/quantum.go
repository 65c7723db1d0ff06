// Package quantum folds multiple forward choices into one superposed
// decision for especially pivotal moments.
package quantum

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// FoldCount is how many candidates a superposition holds.
const FoldCount = 3

// Choice is a temporary superposition of forward choices presented as
// one entangled decision. Resolving it selects exactly one candidate;
// the alternatives are discarded, not retried.
type Choice struct {
	ID         string             `json:"id"`
	Text       string             `json:"text"`
	Candidates []narrative.Choice `json:"candidates"`
}

// Synthesize collapses the first three candidates into a superposed
// choice. It requires at least three candidates; callers gate on the
// just-resolved choice having pivotal magnitude.
func Synthesize(candidates []narrative.Choice, ws branch.WorldState, premise *narrative.Premise) (*Choice, error) {
	if len(candidates) < FoldCount {
		return nil, fmt.Errorf("quantum choice requires at least %d candidates, got %d", FoldCount, len(candidates))
	}

	folded := make([]narrative.Choice, FoldCount)
	copy(folded, candidates[:FoldCount])

	labels := make([]string, 0, FoldCount)
	for _, c := range folded {
		labels = append(labels, c.Text)
	}

	text := "The moment splits: " + strings.Join(labels, " / ")
	if premise != nil && ws.PremiseProgression >= branch.MaxPremiseProgression {
		// The premise is fully tested; frame the superposition as the
		// story's final fork.
		text = fmt.Sprintf("%s has been answered. %s", premise.DisplayTitle(), text)
	}

	return &Choice{
		ID:         "quantum-" + uuid.New().String()[:8],
		Text:       text,
		Candidates: folded,
	}, nil
}

// Resolve collapses the superposition to one concrete choice. The
// result feeds the normal orchestrator path; no new resolution
// mechanism is introduced here.
func (qc *Choice) Resolve(choiceID string) (*narrative.Choice, error) {
	for i := range qc.Candidates {
		if qc.Candidates[i].ID == choiceID {
			return &qc.Candidates[i], nil
		}
	}
	return nil, fmt.Errorf("choice %s is not part of quantum choice %s", choiceID, qc.ID)
}
