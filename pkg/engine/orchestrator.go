// Package engine is the top-level controller for choice resolution. It
// owns no state between calls: every resolution takes a branch in and
// hands a new branch back, which makes it safe to run many independent
// stories concurrently without coordination.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/butterfly"
	"github.com/jwebster45206/branch-engine/pkg/catalog"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/escape"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
	"github.com/jwebster45206/branch-engine/pkg/quantum"
)

// DefaultPremiseIncrement preserves the source behavior: a
// premise-testing choice advances premise progression by 15 points.
const DefaultPremiseIncrement = 15.0

// Config carries the tunable constants of resolution.
type Config struct {
	// PremiseIncrement is how far a premise-testing choice advances
	// premise progression. Zero means DefaultPremiseIncrement.
	PremiseIncrement float64
}

// Result is everything a single resolution produced. The input branch
// is never mutated; callers persist Result.Branch or discard it.
type Result struct {
	Branch            *branch.BranchState    `json:"branch"`
	NextCatalog       []narrative.Choice     `json:"next_catalog"`
	Analysis          butterfly.Analysis     `json:"butterfly_analysis"`
	Derailed          bool                   `json:"derailed"`
	FiredHatch        *narrative.EscapeHatch `json:"fired_hatch,omitempty"`
	ForcedConvergence *convergence.Point     `json:"forced_convergence,omitempty"`
	ScheduledPoint    *convergence.Point     `json:"scheduled_point,omitempty"`
	Quantum           *quantum.Choice        `json:"quantum_choice,omitempty"`
}

// Orchestrator resolves choices against branch state.
type Orchestrator struct {
	generator        *catalog.Generator
	escape           *escape.Evaluator
	planner          *convergence.Planner
	premiseIncrement float64
	logger           *slog.Logger
}

// New creates an orchestrator.
func New(gen *catalog.Generator, esc *escape.Evaluator, planner *convergence.Planner, cfg Config, logger *slog.Logger) *Orchestrator {
	inc := cfg.PremiseIncrement
	if inc <= 0 {
		inc = DefaultPremiseIncrement
	}
	return &Orchestrator{
		generator:        gen,
		escape:           esc,
		planner:          planner,
		premiseIncrement: inc,
		logger:           logger,
	}
}

// ResolveChoice applies one selected choice to a branch and produces
// the next catalog. On any error the input branch is untouched and must
// remain the caller's last-good state.
//
// The history append happens before every other effect, so a branch's
// history is consistent even when a later step fails. Episodes advance
// by exactly 1 per resolution, on derailment turns too.
func (o *Orchestrator) ResolveChoice(b *branch.BranchState, offered []narrative.Choice, choiceID string, premise *narrative.Premise, points []convergence.Point) (*Result, error) {
	choice := narrative.FindChoice(offered, choiceID)
	if choice == nil {
		return nil, fmt.Errorf("resolve %s on branch %s: %w", choiceID, b.ID, ErrChoiceNotFound)
	}

	work := b.Clone()
	episodeBefore := work.CurrentEpisode
	work.AppendHistory(*choice)

	result := &Result{}

	outcome := o.escape.Evaluate(work, choiceID)
	if outcome != nil && outcome.Fired {
		// Derailment replaces normal premise progression entirely.
		o.escape.ApplyDerailment(work, outcome.Hatch)
		result.Derailed = true
		result.FiredHatch = outcome.Hatch
		result.NextCatalog = o.generator.EmergencySeeds(outcome.Hatch, work)
	} else {
		o.applyChoiceEffects(work, choice)
		// A world-bending choice schedules its own aftermath as a new
		// convergence point. The caller persists it; forcing starts on
		// later resolutions, once the branch drifts into its window.
		if scheduled := o.planner.ScheduleFromChoice(work, choice); scheduled != nil {
			work.Schedule.UpcomingPoints = append(work.Schedule.UpcomingPoints, scheduled.ID)
			result.ScheduledPoint = scheduled
			o.logger.Info("Choice scheduled a convergence point",
				"branch", work.ID.String(),
				"point", scheduled.ID,
				"target_episode", scheduled.TargetEpisode)
		}
		result.NextCatalog = o.generator.GenerateFollowUps(*choice, work, premise)
	}

	// Butterfly analysis is recomputed on every resolution and carried
	// on the result; the tracker itself never mutates the branch.
	result.Analysis = butterfly.Track(work.ChoiceHistory, work.WorldState, work.CurrentEpisode)
	if result.Analysis.ButterflyStorm && !result.Derailed {
		o.logger.Warn("Butterfly storm detected",
			"branch", work.ID.String(),
			"emerging", len(result.Analysis.EmergingEffects),
			"systemic_risk", result.Analysis.SystemicRisk)
		work.RaiseDerailmentRisk(1)
	}

	if forced := o.planner.ShouldForceConvergence(work, points); forced != nil {
		if err := o.planner.Enforce(work, forced); err != nil {
			// Fatal for this branch state: the caller keeps last-good.
			return nil, err
		}
		// The point resolves once the branch actually reaches it.
		if work.CurrentEpisode+1 >= forced.TargetEpisode {
			forced.Resolved = true
		}
		result.ForcedConvergence = forced
	}

	work.AdvanceEpisode()
	if work.CurrentEpisode != episodeBefore+1 {
		return nil, &branch.InvariantViolationError{
			BranchID:  work.ID.String(),
			Invariant: "current episode advances by exactly 1 per resolution",
			Detail:    fmt.Sprintf("episode went from %d to %d", episodeBefore, work.CurrentEpisode),
		}
	}
	work.UpdatedAt = time.Now()

	if choice.Magnitude == narrative.MagnitudePivotal && len(result.NextCatalog) >= quantum.FoldCount {
		qc, err := quantum.Synthesize(result.NextCatalog, work.WorldState, premise)
		if err == nil {
			result.Quantum = qc
		}
	}

	if len(result.NextCatalog) == 0 {
		o.logger.Info("Branch arc ended: no follow-up choices",
			"branch", work.ID.String(),
			"episode", work.CurrentEpisode)
	}

	result.Branch = work
	return result, nil
}

// applyChoiceEffects runs the type-specific consequence of a non-derailed
// choice. Only premise-testing choices move premise progression; every
// other type nudges derailment risk upward instead.
func (o *Orchestrator) applyChoiceEffects(work *branch.BranchState, choice *narrative.Choice) {
	switch choice.Type {
	case narrative.ChoiceTypePremiseTesting:
		work.AdvancePremise(o.premiseIncrement)
	default:
		work.RaiseDerailmentRisk(1)
	}

	for _, cons := range choice.Consequences {
		// Severe irreversible consequences scar the world permanently.
		if cons.Severity >= 8 && !cons.Reversible {
			work.SetFact("scar:"+choice.ID, true)
		}
		if choice.Type == narrative.ChoiceTypeRelationshipShaping && cons.Severity >= 5 {
			for name := range work.CharacterStates {
				work.AdjustStress(name, 1)
			}
		}
	}
}
