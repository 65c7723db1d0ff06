package narrative

import "fmt"

// EscapeType is how far off the rails a hatch is allowed to take the story.
type EscapeType string

const (
	EscapeMinorDetour EscapeType = "minor-detour"
	EscapeMajorPivot  EscapeType = "major-pivot"
	EscapeGenreShift  EscapeType = "genre-shift"
)

// DerailmentLevel is how deep the rewrite goes when a hatch fires.
type DerailmentLevel string

const (
	DerailmentCosmetic   DerailmentLevel = "cosmetic"
	DerailmentStructural DerailmentLevel = "structural"
	DerailmentThematic   DerailmentLevel = "thematic"
)

// ActivationRequirement is a gating condition with an associated
// probability. The condition is a small expression over branch state,
// e.g. "derailment_risk >= 5" or "fact:mentor_betrayed".
type ActivationRequirement struct {
	Condition   string  `json:"condition" yaml:"condition"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// StoryDirection is the replacement premise framing a derailment installs.
type StoryDirection struct {
	Genre       string `json:"genre" yaml:"genre"`
	Premise     string `json:"premise" yaml:"premise"`
	Tone        string `json:"tone,omitempty" yaml:"tone,omitempty"`
	Protagonist string `json:"protagonist,omitempty" yaml:"protagonist,omitempty"`
}

// EmergencyNarrative is the fallback plot used to keep continuity when
// the active premise is swapped out mid-story.
type EmergencyNarrative struct {
	FallbackPlot     string   `json:"fallback_plot" yaml:"fallback_plot"`
	ContinuityRules  []string `json:"continuity_rules,omitempty" yaml:"continuity_rules,omitempty"`
	SeedChoices      []Choice `json:"seed_choices,omitempty" yaml:"seed_choices,omitempty"`
	OpeningNarration string   `json:"opening_narration,omitempty" yaml:"opening_narration,omitempty"`
}

// ThematicShift records what a derailment does to the story's theme.
type ThematicShift struct {
	From         string `json:"from" yaml:"from"`
	To           string `json:"to" yaml:"to"`
	BridgeMethod string `json:"bridge_method,omitempty" yaml:"bridge_method,omitempty"`
}

// String renders the shift as the free-text form stored on a branch.
func (ts ThematicShift) String() string {
	if ts.BridgeMethod == "" {
		return fmt.Sprintf("%s to %s", ts.From, ts.To)
	}
	return fmt.Sprintf("%s to %s via %s", ts.From, ts.To, ts.BridgeMethod)
}

// EscapeHatch is a dormant trigger that can replace the active premise
// entirely while preserving character and world continuity. A hatch
// fires at most once per branch.
type EscapeHatch struct {
	ID                     string                  `json:"id" yaml:"id"`
	TriggerChoice          string                  `json:"trigger_choice" yaml:"trigger_choice"`
	EscapeType             EscapeType              `json:"escape_type" yaml:"escape_type"`
	DerailmentLevel        DerailmentLevel         `json:"derailment_level" yaml:"derailment_level"`
	ActivationRequirements []ActivationRequirement `json:"activation_requirements,omitempty" yaml:"activation_requirements,omitempty"`
	NewStoryDirection      StoryDirection          `json:"new_story_direction" yaml:"new_story_direction"`
	EmergencyNarrative     EmergencyNarrative      `json:"emergency_narrative" yaml:"emergency_narrative"`
	Shift                  ThematicShift           `json:"thematic_shift" yaml:"thematic_shift"`
	Reevaluable            bool                    `json:"reevaluable,omitempty" yaml:"reevaluable,omitempty"` // stays armed after a failed fire draw
}

// Validate checks the closed enums of an escape hatch.
func (h *EscapeHatch) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("escape hatch id cannot be empty")
	}
	if h.TriggerChoice == "" {
		return fmt.Errorf("escape hatch %s: trigger choice cannot be empty", h.ID)
	}
	switch h.EscapeType {
	case EscapeMinorDetour, EscapeMajorPivot, EscapeGenreShift:
	default:
		return fmt.Errorf("escape hatch %s: unknown escape type %q", h.ID, h.EscapeType)
	}
	switch h.DerailmentLevel {
	case DerailmentCosmetic, DerailmentStructural, DerailmentThematic:
	default:
		return fmt.Errorf("escape hatch %s: unknown derailment level %q", h.ID, h.DerailmentLevel)
	}
	for i, req := range h.ActivationRequirements {
		if req.Probability < 0 || req.Probability > 1 {
			return fmt.Errorf("escape hatch %s: requirement %d probability %v outside [0,1]", h.ID, i, req.Probability)
		}
	}
	return nil
}
