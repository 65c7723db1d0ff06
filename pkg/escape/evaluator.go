// Package escape evaluates the probabilistic gates that can derail a
// branch onto an entirely new premise while preserving continuity.
package escape

import (
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// DefaultFireThreshold preserves the source behavior: a hatch fires
// when a uniform draw exceeds 0.7, roughly a 30% fire rate.
const DefaultFireThreshold = 0.7

// Rand is the random source used for fire draws. Injecting it keeps
// hatch firing reproducible under a fixed seed.
type Rand interface {
	Float64() float64
}

// Outcome is the result of evaluating a hatch on one choice selection.
type Outcome struct {
	Hatch         *narrative.EscapeHatch
	Fired         bool
	Expired       bool // gating passed, draw failed, hatch not reevaluable
	Misconfigured bool // a condition could not be evaluated; treated as gating failed
}

// Evaluator runs the per-hatch state machine: Armed -> Fired | Expired.
type Evaluator struct {
	threshold float64
	rng       Rand
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator with the given fire threshold.
// Valid thresholds are [0, 1); zero means every gated hatch fires on
// any positive draw. Out-of-range thresholds fall back to
// DefaultFireThreshold. A nil rng gets a seeded PCG source.
func NewEvaluator(threshold float64, rng Rand, logger *slog.Logger) *Evaluator {
	if threshold < 0 || threshold >= 1 {
		threshold = DefaultFireThreshold
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Evaluator{
		threshold: threshold,
		rng:       rng,
		logger:    logger,
	}
}

// NewSeededEvaluator creates an evaluator whose draws are reproducible
// for a fixed seed.
func NewSeededEvaluator(threshold float64, seed uint64, logger *slog.Logger) *Evaluator {
	return NewEvaluator(threshold, rand.New(rand.NewPCG(seed, seed)), logger)
}

// Evaluate checks whether selecting choiceID fires an armed hatch on
// the branch. It mutates the branch only through hatch bookkeeping
// (removing expired hatches); applying a derailment is a separate step
// so the orchestrator controls ordering.
func (e *Evaluator) Evaluate(b *branch.BranchState, choiceID string) *Outcome {
	hatch := e.armedHatch(b, choiceID)
	if hatch == nil {
		return nil
	}
	out := &Outcome{Hatch: hatch}

	// Gating: every requirement must pass its condition and its own
	// probability draw.
	for _, req := range hatch.ActivationRequirements {
		ok, err := evalCondition(b, req.Condition)
		if err != nil {
			var unknown *ErrUnknownCondition
			if errors.As(err, &unknown) {
				// A misconfigured hatch never fires, but it is not fatal.
				e.logger.Warn("Escape hatch condition cannot be evaluated",
					"hatch", hatch.ID,
					"condition", req.Condition)
				out.Misconfigured = true
				return out
			}
			out.Misconfigured = true
			return out
		}
		if !ok {
			return out
		}
		if req.Probability < 1 && e.rng.Float64() >= req.Probability {
			return out
		}
	}

	// Fire draw. The source fired when the draw exceeded the threshold.
	if e.rng.Float64() > e.threshold {
		out.Fired = true
		return out
	}

	// Gating passed but the draw failed. A non-reevaluable hatch is spent.
	if !hatch.Reevaluable {
		out.Expired = true
		b.RemoveHatch(hatch.ID)
		e.logger.Debug("Escape hatch expired", "hatch", hatch.ID, "branch", b.ID.String())
	}
	return out
}

// ApplyDerailment rewrites the branch from the hatch's new story
// direction. A derailment consumes the branch's entire escape budget:
// the derailment risk resets and every armed hatch is cleared, so a
// hatch can fire at most once per branch.
func (e *Evaluator) ApplyDerailment(b *branch.BranchState, hatch *narrative.EscapeHatch) {
	b.Name = hatch.NewStoryDirection.Premise
	if b.Name == "" {
		b.Name = hatch.NewStoryDirection.Genre
	}
	b.Description = hatch.EmergencyNarrative.FallbackPlot
	b.ThematicShift = hatch.Shift.String()
	b.DerailmentRisk = 0
	b.EscapeHatches = nil

	e.logger.Info("Branch derailed",
		"branch", b.ID.String(),
		"hatch", hatch.ID,
		"escape_type", hatch.EscapeType,
		"derailment_level", hatch.DerailmentLevel,
		"new_genre", hatch.NewStoryDirection.Genre)
}

// armedHatch returns the hatch whose trigger matches choiceID, if it is
// still armed on this branch.
func (e *Evaluator) armedHatch(b *branch.BranchState, choiceID string) *narrative.EscapeHatch {
	for i := range b.EscapeHatches {
		if b.EscapeHatches[i].TriggerChoice == choiceID {
			return &b.EscapeHatches[i]
		}
	}
	return nil
}
