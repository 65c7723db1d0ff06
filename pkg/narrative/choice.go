package narrative

import "fmt"

// ButterflyPotential describes a minor consequence that may cascade into
// a much larger narrative impact several episodes later.
type ButterflyPotential struct {
	ProbabilityThreshold float64 `json:"probability_threshold" yaml:"probability_threshold"` // chance the cascade manifests once due
	CascadeDelay         int     `json:"cascade_delay" yaml:"cascade_delay"`                 // episodes between trigger and manifestation
	UltimateImpact       string  `json:"ultimate_impact" yaml:"ultimate_impact"`
}

// Consequence is the effect of selecting a Choice. Consequences are
// immutable once their owning choice has been selected; new choices get
// new consequences.
type Consequence struct {
	Severity           int                  `json:"severity" yaml:"severity"` // 1-10
	ImmediateEffect    string               `json:"immediate_effect" yaml:"immediate_effect"`
	DelayedEffect      string               `json:"delayed_effect,omitempty" yaml:"delayed_effect,omitempty"`
	Delay              int                  `json:"delay,omitempty" yaml:"delay,omitempty"` // episodes until the delayed effect lands
	CascadeRisk        int                  `json:"cascade_risk" yaml:"cascade_risk"`       // 1-10
	ButterflyPotential []ButterflyPotential `json:"butterfly_potential,omitempty" yaml:"butterfly_potential,omitempty"`
	Reversible         bool                 `json:"reversible" yaml:"reversible"`
}

// BranchingPotential describes how strongly a choice splits the story.
type BranchingPotential struct {
	BranchCount           int     `json:"branch_count" yaml:"branch_count"`
	DivergenceLevel       string  `json:"divergence_level" yaml:"divergence_level"` // e.g. "low", "moderate", "extreme"
	ConvergenceLikelihood float64 `json:"convergence_likelihood" yaml:"convergence_likelihood"`
}

// MoralComplexity scores how morally fraught a choice is.
type MoralComplexity struct {
	HasClearRightAnswer bool     `json:"has_clear_right_answer" yaml:"has_clear_right_answer"`
	GrayAreas           []string `json:"gray_areas,omitempty" yaml:"gray_areas,omitempty"`
	PhilosophicalDepth  int      `json:"philosophical_depth" yaml:"philosophical_depth"` // 1-10
}

// Choice is a single decision point offered to the player.
type Choice struct {
	ID                 string             `json:"id" yaml:"id"`
	Text               string             `json:"text" yaml:"text"`
	Type               ChoiceType         `json:"type" yaml:"type"`
	Magnitude          Magnitude          `json:"magnitude" yaml:"magnitude"`
	Scope              Scope              `json:"scope" yaml:"scope"`
	Consequences       []Consequence      `json:"consequences,omitempty" yaml:"consequences,omitempty"`
	BranchingPotential BranchingPotential `json:"branching_potential" yaml:"branching_potential"`
	MoralComplexity    MoralComplexity    `json:"moral_complexity" yaml:"moral_complexity"`
	EscapeHatchID      string             `json:"escape_hatch_id,omitempty" yaml:"escape_hatch_id,omitempty"`
}

// Validate checks the closed enums and numeric invariants of a choice.
func (c *Choice) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("choice id cannot be empty")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("choice %s: unknown type %q", c.ID, c.Type)
	}
	if !c.Magnitude.IsValid() {
		return fmt.Errorf("choice %s: unknown magnitude %q", c.ID, c.Magnitude)
	}
	if !c.Scope.IsValid() {
		return fmt.Errorf("choice %s: unknown scope %q", c.ID, c.Scope)
	}
	if cl := c.BranchingPotential.ConvergenceLikelihood; cl < 0 || cl > 1 {
		return fmt.Errorf("choice %s: convergence likelihood %v outside [0,1]", c.ID, cl)
	}
	maxSev := MaxSeverity(c.Magnitude, c.Scope)
	for i, cons := range c.Consequences {
		if cons.Severity < 1 || cons.Severity > 10 {
			return fmt.Errorf("choice %s: consequence %d severity %d outside [1,10]", c.ID, i, cons.Severity)
		}
		if cons.Severity > maxSev {
			return fmt.Errorf("choice %s: consequence %d severity %d exceeds max %d for %s/%s",
				c.ID, i, cons.Severity, maxSev, c.Magnitude, c.Scope)
		}
		if cons.CascadeRisk < 1 || cons.CascadeRisk > 10 {
			return fmt.Errorf("choice %s: consequence %d cascade risk %d outside [1,10]", c.ID, i, cons.CascadeRisk)
		}
		for j, bp := range cons.ButterflyPotential {
			if bp.ProbabilityThreshold < 0 || bp.ProbabilityThreshold > 1 {
				return fmt.Errorf("choice %s: butterfly %d.%d threshold %v outside [0,1]", c.ID, i, j, bp.ProbabilityThreshold)
			}
			if bp.CascadeDelay < 0 {
				return fmt.Errorf("choice %s: butterfly %d.%d has negative cascade delay", c.ID, i, j)
			}
		}
	}
	return nil
}

// FindChoice returns the choice with the given id from a catalog,
// or nil if it is not offered.
func FindChoice(catalog []Choice, id string) *Choice {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i]
		}
	}
	return nil
}
