// Package catalog generates the set of decision points offered after a
// resolved choice. Generation is deterministic: two branches with the
// same (choice, state) pair produce identical follow-up sets, which is
// what makes the engine testable even when an upstream model adds
// flavor text on top.
package catalog

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// shape is the skeleton of one generated follow-up.
type shape struct {
	choiceType narrative.ChoiceType
	magnitude  narrative.Magnitude
	scope      narrative.Scope
}

// followUpShapes maps a resolved choice's type to the shapes of its
// successors. A type with no mapping is terminal: its branch arc ends.
var followUpShapes = map[narrative.ChoiceType][]shape{
	narrative.ChoiceTypePremiseTesting: {
		{narrative.ChoiceTypeCharacterDefining, narrative.MagnitudeModerate, narrative.ScopeInterpersonal},
		{narrative.ChoiceTypePremiseTesting, narrative.MagnitudeMajor, narrative.ScopeGlobal},
		{narrative.ChoiceTypePlotAdvancing, narrative.MagnitudeMinor, narrative.ScopeInterpersonal},
	},
	narrative.ChoiceTypeCharacterDefining: {
		{narrative.ChoiceTypeRelationshipShaping, narrative.MagnitudeModerate, narrative.ScopeInterpersonal},
		{narrative.ChoiceTypePremiseTesting, narrative.MagnitudeModerate, narrative.ScopeGlobal},
		{narrative.ChoiceTypeEscapeTriggering, narrative.MagnitudeMajor, narrative.ScopeMeta},
	},
	narrative.ChoiceTypePlotAdvancing: {
		{narrative.ChoiceTypePlotAdvancing, narrative.MagnitudeMinor, narrative.ScopeInterpersonal},
		{narrative.ChoiceTypeCharacterDefining, narrative.MagnitudeModerate, narrative.ScopeInterpersonal},
		{narrative.ChoiceTypePremiseTesting, narrative.MagnitudePivotal, narrative.ScopeGlobal},
	},
	narrative.ChoiceTypeRelationshipShaping: {
		{narrative.ChoiceTypeRelationshipShaping, narrative.MagnitudeMinor, narrative.ScopeInterpersonal},
		{narrative.ChoiceTypeCharacterDefining, narrative.MagnitudeMajor, narrative.ScopeInterpersonal},
	},
	narrative.ChoiceTypeEscapeTriggering: {
		{narrative.ChoiceTypePlotAdvancing, narrative.MagnitudeModerate, narrative.ScopeGlobal},
		{narrative.ChoiceTypePremiseTesting, narrative.MagnitudeMajor, narrative.ScopeGlobal},
		{narrative.ChoiceTypeCharacterDefining, narrative.MagnitudePivotal, narrative.ScopeMeta},
	},
}

var choiceTemplates = map[narrative.ChoiceType][]string{
	narrative.ChoiceTypeCharacterDefining: {
		"Confront what %s means for who you are",
		"Hold to your principles despite %s",
		"Let %s change you",
	},
	narrative.ChoiceTypePremiseTesting: {
		"Put %s to the test",
		"Push %s past its breaking point",
		"Prove %s wrong",
	},
	narrative.ChoiceTypePlotAdvancing: {
		"Follow the thread of %s",
		"Press on before %s catches up",
		"Seek out the source of %s",
	},
	narrative.ChoiceTypeRelationshipShaping: {
		"Tell them the truth about %s",
		"Protect them from %s",
		"Ask for help with %s",
	},
	narrative.ChoiceTypeEscapeTriggering: {
		"Abandon the path entirely over %s",
		"Tear the story open through %s",
		"Walk through the door %s revealed",
	},
}

// Generator produces follow-up catalogs.
type Generator struct{}

// NewGenerator creates a catalog generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateFollowUps builds the next catalog from the resolved choice
// and the branch's accumulated state. A previous choice with no defined
// successors returns an empty catalog, which ends the branch's active
// arc; callers must not treat that as an error.
func (g *Generator) GenerateFollowUps(prev narrative.Choice, b *branch.BranchState, premise *narrative.Premise) []narrative.Choice {
	if prev.BranchingPotential.BranchCount == 0 {
		return nil
	}
	shapes, ok := followUpShapes[prev.Type]
	if !ok {
		return nil
	}

	rng := rand.New(rand.NewPCG(stateSeed(prev, b), 0))
	choices := make([]narrative.Choice, 0, len(shapes))
	for i, sh := range shapes {
		choices = append(choices, g.buildChoice(prev, sh, i, rng, premise))
	}
	return choices
}

// EmergencySeeds builds the catalog that follows a derailment, seeded
// from the hatch's emergency narrative. Authored seed choices win;
// otherwise a minimal catalog is generated from the new direction.
func (g *Generator) EmergencySeeds(hatch *narrative.EscapeHatch, b *branch.BranchState) []narrative.Choice {
	if len(hatch.EmergencyNarrative.SeedChoices) > 0 {
		seeds := make([]narrative.Choice, len(hatch.EmergencyNarrative.SeedChoices))
		copy(seeds, hatch.EmergencyNarrative.SeedChoices)
		return seeds
	}

	genre := hatch.NewStoryDirection.Genre
	return []narrative.Choice{
		{
			ID:        hatch.ID + "-embrace",
			Text:      fmt.Sprintf("Embrace the story's turn toward %s", genre),
			Type:      narrative.ChoiceTypePremiseTesting,
			Magnitude: narrative.MagnitudeMajor,
			Scope:     narrative.ScopeGlobal,
			BranchingPotential: narrative.BranchingPotential{
				BranchCount:           2,
				DivergenceLevel:       "extreme",
				ConvergenceLikelihood: 0.3,
			},
		},
		{
			ID:        hatch.ID + "-anchor",
			Text:      "Hold on to who you were before everything changed",
			Type:      narrative.ChoiceTypeCharacterDefining,
			Magnitude: narrative.MagnitudeModerate,
			Scope:     narrative.ScopeInterpersonal,
			BranchingPotential: narrative.BranchingPotential{
				BranchCount:           2,
				DivergenceLevel:       "moderate",
				ConvergenceLikelihood: 0.7,
			},
		},
	}
}

func (g *Generator) buildChoice(prev narrative.Choice, sh shape, index int, rng *rand.Rand, premise *narrative.Premise) narrative.Choice {
	subject := "what just happened"
	if premise != nil && len(premise.Themes) > 0 {
		subject = premise.Themes[rng.IntN(len(premise.Themes))]
	}
	templates := choiceTemplates[sh.choiceType]
	text := fmt.Sprintf(templates[rng.IntN(len(templates))], subject)

	maxSev := narrative.MaxSeverity(sh.magnitude, sh.scope)
	severity := 1 + rng.IntN(maxSev)

	cons := narrative.Consequence{
		Severity:        severity,
		ImmediateEffect: fmt.Sprintf("The decision about %s lands immediately", subject),
		CascadeRisk:     1 + rng.IntN(10),
		Reversible:      sh.magnitude.Rank() <= narrative.MagnitudeModerate.Rank(),
	}
	// Higher-magnitude choices plant butterflies.
	if sh.magnitude.Rank() >= narrative.MagnitudeModerate.Rank() {
		cons.ButterflyPotential = []narrative.ButterflyPotential{{
			ProbabilityThreshold: 0.2 + rng.Float64()*0.6,
			CascadeDelay:         2 + rng.IntN(4),
			UltimateImpact:       fmt.Sprintf("The echo of %s returns transformed", subject),
		}}
	}

	return narrative.Choice{
		ID:           fmt.Sprintf("%s-f%d", prev.ID, index),
		Text:         text,
		Type:         sh.choiceType,
		Magnitude:    sh.magnitude,
		Scope:        sh.scope,
		Consequences: []narrative.Consequence{cons},
		BranchingPotential: narrative.BranchingPotential{
			BranchCount:           2 + rng.IntN(2),
			DivergenceLevel:       sh.magnitude.DivergenceLevel(),
			ConvergenceLikelihood: prev.BranchingPotential.ConvergenceLikelihood,
		},
		MoralComplexity: narrative.MoralComplexity{
			HasClearRightAnswer: sh.choiceType == narrative.ChoiceTypePlotAdvancing,
			PhilosophicalDepth:  1 + rng.IntN(10),
		},
	}
}

// stateSeed fingerprints the (choice, state) pair. Branches with the
// same history produce the same seed and therefore the same catalog.
func stateSeed(prev narrative.Choice, b *branch.BranchState) uint64 {
	h := fnv.New64a()
	h.Write([]byte(prev.ID))
	h.Write([]byte(b.PremiseID))
	fmt.Fprintf(h, "|%d|%.2f|%d|%d",
		b.CurrentEpisode,
		b.WorldState.PremiseProgression,
		b.DerailmentRisk,
		len(b.ChoiceHistory))
	return h.Sum64()
}
