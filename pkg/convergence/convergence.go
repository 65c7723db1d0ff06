// Package convergence plans the inevitable story junctures that all
// branches must eventually reconcile into.
package convergence

import (
	"fmt"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// aftermathLead is how many episodes after a world-bending choice its
// convergence point lands.
const aftermathLead = 3

// Type is how negotiable a convergence point is.
type Type string

const (
	TypeInevitable Type = "inevitable"
	TypeNegotiable Type = "negotiable"
	TypeOptional   Type = "optional"
)

// Flexibility is how much a required element may bend when branches merge.
type Flexibility string

const (
	FlexibilityNone Flexibility = "none"
	FlexibilityLow  Flexibility = "low"
	FlexibilityHigh Flexibility = "high"
)

// RequiredElement is a story fact that must hold at a convergence point.
type RequiredElement struct {
	Element     string      `json:"element" yaml:"element"` // world fact key, e.g. "protagonist_alive"
	Flexibility Flexibility `json:"flexibility" yaml:"flexibility"`
}

// Point is a future juncture branches are pulled toward. Points are
// created at story initialization or when a global-scope major choice
// resolves, and transition to resolved once merging branches reach the
// target episode.
type Point struct {
	ID                 string            `json:"id" yaml:"id"`
	TargetEpisode      int               `json:"target_episode" yaml:"target_episode"`
	Type               Type              `json:"convergence_type" yaml:"convergence_type"`
	Force              int               `json:"convergence_force" yaml:"convergence_force"` // 1-10
	RequiredElements   []RequiredElement `json:"required_elements,omitempty" yaml:"required_elements,omitempty"`
	FlexibleElements   []string          `json:"flexible_elements,omitempty" yaml:"flexible_elements,omitempty"`
	ConvergenceScars   []string          `json:"convergence_scars,omitempty" yaml:"convergence_scars,omitempty"`
	LastingDifferences []string          `json:"lasting_differences,omitempty" yaml:"lasting_differences,omitempty"`
	Resolved           bool              `json:"resolved,omitempty" yaml:"resolved,omitempty"`
}

// Planner decides when a branch has run out of freedom.
type Planner struct{}

// NewPlanner creates a convergence planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// ScheduleFromChoice creates a convergence point for a resolved choice
// weighty enough to bend every timeline toward its aftermath: magnitude
// major or above with global scope. Smaller choices return nil. The
// point lands aftermathLead episodes past the resolving episode and is
// negotiable, so branches can still argue about how they arrive.
func (p *Planner) ScheduleFromChoice(b *branch.BranchState, choice *narrative.Choice) *Point {
	if choice.Scope != narrative.ScopeGlobal ||
		choice.Magnitude.Rank() < narrative.MagnitudeMajor.Rank() {
		return nil
	}
	return &Point{
		ID:            "aftermath-" + choice.ID,
		TargetEpisode: b.CurrentEpisode + aftermathLead,
		Type:          TypeNegotiable,
		Force:         narrative.MaxSeverity(choice.Magnitude, choice.Scope),
	}
}

// ShouldForceConvergence returns the nearest unresolved, non-optional
// point within the branch's flexibility window, or nil if the branch
// still has room to roam.
func (p *Planner) ShouldForceConvergence(b *branch.BranchState, points []Point) *Point {
	var nearest *Point
	for i := range points {
		pt := &points[i]
		if pt.Resolved || pt.Type == TypeOptional {
			continue
		}
		remaining := pt.TargetEpisode - b.CurrentEpisode
		if remaining < 0 || remaining > b.Schedule.FlexibilityWindow {
			continue
		}
		if nearest == nil || pt.TargetEpisode < nearest.TargetEpisode {
			nearest = pt
		}
	}
	return nearest
}

// Enforce verifies that every inflexible required element holds on the
// branch. A violated flexibility-none element is a fatal invariant
// breach: the caller must not persist the branch in this state.
func (p *Planner) Enforce(b *branch.BranchState, pt *Point) error {
	for _, req := range pt.RequiredElements {
		if req.Flexibility != FlexibilityNone {
			continue
		}
		if !b.HasFact(req.Element) {
			return &branch.InvariantViolationError{
				BranchID:  b.ID.String(),
				Invariant: fmt.Sprintf("convergence %s requires %q", pt.ID, req.Element),
				Detail:    "required element with no flexibility does not hold",
			}
		}
	}
	return nil
}

// Merge reconciles a diverged branch into a primary branch at a
// convergence point. Both branches must satisfy the point's inflexible
// elements. Differences in world facts outside the required set are
// recorded on the point as scars and lasting differences.
func (p *Planner) Merge(primary, diverged *branch.BranchState, pt *Point) (*branch.BranchState, error) {
	if err := p.Enforce(primary, pt); err != nil {
		return nil, err
	}
	if err := p.Enforce(diverged, pt); err != nil {
		return nil, err
	}

	merged := primary.Clone()
	required := make(map[string]bool, len(pt.RequiredElements))
	for _, req := range pt.RequiredElements {
		required[req.Element] = true
	}

	for key, val := range diverged.WorldState.Facts {
		if required[key] {
			continue
		}
		if have, ok := merged.WorldState.Facts[key]; !ok {
			// A fact only one timeline established survives the merge.
			merged.SetFact(key, val)
		} else if have != val {
			pt.LastingDifferences = append(pt.LastingDifferences,
				fmt.Sprintf("%s diverged between timelines", key))
		}
	}

	if diverged.DerailmentRisk > merged.DerailmentRisk {
		merged.DerailmentRisk = diverged.DerailmentRisk
	}
	if diverged.CurrentEpisode > merged.CurrentEpisode {
		merged.CurrentEpisode = diverged.CurrentEpisode
	}

	pt.ConvergenceScars = append(pt.ConvergenceScars,
		fmt.Sprintf("merged %s into %s at episode %d", diverged.ID, primary.ID, merged.CurrentEpisode))
	pt.Resolved = true
	return merged, nil
}
