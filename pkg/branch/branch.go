package branch

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

const (
	MaxPremiseProgression = 100.0
	MaxDerailmentRisk     = 10
)

// WorldState is the mutable world snapshot of one timeline.
type WorldState struct {
	PremiseProgression float64         `json:"premise_progression"` // 0-100, how far the premise has been tested
	Facts              map[string]bool `json:"facts,omitempty"`     // arbitrary world facts, e.g. "protagonist_alive"
}

// CharacterState is the branch-specific view of one character.
type CharacterState struct {
	StressLevel   int            `json:"stress_level"` // 0-10
	Relationships map[string]int `json:"relationships,omitempty"`
	Traits        []string       `json:"traits,omitempty"`
}

// ConvergenceSchedule tracks the forced junctures ahead of a branch.
type ConvergenceSchedule struct {
	UpcomingPoints       []string `json:"upcoming_points,omitempty"` // convergence point IDs
	NextMajorConvergence int      `json:"next_major_convergence"`    // episode of the next inevitable juncture
	FlexibilityWindow    int      `json:"flexibility_window"`        // episodes of freedom before forcing kicks in
}

// PlayerInvestment is descriptive bookkeeping about how attached the
// player is to this timeline. It never drives engine decisions.
type PlayerInvestment struct {
	EmotionalAttachment     int `json:"emotional_attachment"`
	TimeInvested            int `json:"time_invested"` // resolved choices
	ConsequencesExperienced int `json:"consequences_experienced"`
}

// HistoryEntry is one resolved choice in a branch's append-only history.
type HistoryEntry struct {
	Episode      int                     `json:"episode"`
	Choice       narrative.Choice        `json:"choice"`
	Consequences []narrative.Consequence `json:"consequences,omitempty"`
	Timestamp    time.Time               `json:"timestamp"`
}

// BranchState is one narrative timeline. Each branch is owned by exactly
// one logical session at a time; the engine never shares mutable state
// between branches.
type BranchState struct {
	ID              uuid.UUID                 `json:"id"`
	PremiseID       string                    `json:"premise_id"`
	OriginChoice    string                    `json:"origin_choice,omitempty"` // choice id this branch forked from
	Name            string                    `json:"name"`
	Description     string                    `json:"description,omitempty"`
	ThematicShift   string                    `json:"thematic_shift"` // "none" until a derailment rewrites it
	CurrentEpisode  int                       `json:"current_episode"`
	WorldState      WorldState                `json:"world_state"`
	CharacterStates map[string]CharacterState `json:"character_states,omitempty"`
	Schedule        ConvergenceSchedule       `json:"convergence_schedule"`
	EscapeHatches   []narrative.EscapeHatch   `json:"escape_hatches,omitempty"`
	DerailmentRisk  int                       `json:"derailment_risk"` // 0-10
	ChoiceHistory   []HistoryEntry            `json:"choice_history,omitempty"`
	Investment      PlayerInvestment          `json:"player_investment"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at,omitempty"`
}

// New creates a fresh branch for a premise, armed with the premise's
// escape hatches and seeded with its opening facts.
func New(p *narrative.Premise) *BranchState {
	facts := make(map[string]bool, len(p.OpeningFacts)+1)
	maps.Copy(facts, p.OpeningFacts)
	if _, ok := facts["protagonist_alive"]; !ok {
		facts["protagonist_alive"] = true
	}

	characters := make(map[string]CharacterState, len(p.Characters))
	for _, name := range p.Characters {
		characters[name] = CharacterState{
			Relationships: make(map[string]int),
		}
	}

	return &BranchState{
		ID:              uuid.New(),
		PremiseID:       p.ID,
		Name:            p.DisplayTitle(),
		Description:     p.Statement,
		ThematicShift:   "none",
		CurrentEpisode:  1,
		WorldState:      WorldState{Facts: facts},
		CharacterStates: characters,
		EscapeHatches:   slices.Clone(p.EscapeHatches),
		ChoiceHistory:   make([]HistoryEntry, 0),
		CreatedAt:       time.Now(),
	}
}

// Clone deep-copies the branch. Forked timelines and in-flight
// resolutions diverge on the copy; nothing mutable is shared with the
// original.
func (b *BranchState) Clone() *BranchState {
	out := *b

	out.WorldState.Facts = maps.Clone(b.WorldState.Facts)

	out.CharacterStates = make(map[string]CharacterState, len(b.CharacterStates))
	for name, cs := range b.CharacterStates {
		cs.Relationships = maps.Clone(cs.Relationships)
		cs.Traits = slices.Clone(cs.Traits)
		out.CharacterStates[name] = cs
	}

	out.Schedule.UpcomingPoints = slices.Clone(b.Schedule.UpcomingPoints)
	out.EscapeHatches = slices.Clone(b.EscapeHatches)
	out.ChoiceHistory = slices.Clone(b.ChoiceHistory)
	return &out
}

// Fork creates a new independent timeline diverging at the given choice.
// The fork deep-copies world and character state at the fork point.
func (b *BranchState) Fork(originChoice string) *BranchState {
	out := b.Clone()
	out.ID = uuid.New()
	out.OriginChoice = originChoice
	out.CreatedAt = time.Now()
	out.UpdatedAt = time.Time{}
	return out
}

// AppendHistory records a resolved choice. History is append-only and
// this must happen before any other effect of resolution, so history
// stays consistent even if later steps fail.
func (b *BranchState) AppendHistory(c narrative.Choice) {
	b.ChoiceHistory = append(b.ChoiceHistory, HistoryEntry{
		Episode:      b.CurrentEpisode,
		Choice:       c,
		Consequences: c.Consequences,
		Timestamp:    time.Now(),
	})
	b.Investment.TimeInvested++
	b.Investment.ConsequencesExperienced += len(c.Consequences)
}

// AdvancePremise raises premise progression, clamped to [0,100].
func (b *BranchState) AdvancePremise(delta float64) {
	b.WorldState.PremiseProgression += delta
	if b.WorldState.PremiseProgression > MaxPremiseProgression {
		b.WorldState.PremiseProgression = MaxPremiseProgression
	}
	if b.WorldState.PremiseProgression < 0 {
		b.WorldState.PremiseProgression = 0
	}
}

// RaiseDerailmentRisk adjusts derailment risk, clamped to [0,10].
func (b *BranchState) RaiseDerailmentRisk(delta int) {
	b.DerailmentRisk += delta
	if b.DerailmentRisk > MaxDerailmentRisk {
		b.DerailmentRisk = MaxDerailmentRisk
	}
	if b.DerailmentRisk < 0 {
		b.DerailmentRisk = 0
	}
}

// AdvanceEpisode moves the branch forward by exactly one episode.
// Episodes are strictly monotonic; they never move backward.
func (b *BranchState) AdvanceEpisode() {
	b.CurrentEpisode++
}

// HasFact reports whether a world fact currently holds.
func (b *BranchState) HasFact(key string) bool {
	return b.WorldState.Facts[key]
}

// SetFact records a world fact on the branch.
func (b *BranchState) SetFact(key string, value bool) {
	if b.WorldState.Facts == nil {
		b.WorldState.Facts = make(map[string]bool)
	}
	b.WorldState.Facts[key] = value
}

// RemoveHatch drops a hatch from the armed set. Returns true if the
// hatch was present.
func (b *BranchState) RemoveHatch(id string) bool {
	for i := range b.EscapeHatches {
		if b.EscapeHatches[i].ID == id {
			b.EscapeHatches = slices.Delete(b.EscapeHatches, i, i+1)
			return true
		}
	}
	return false
}

// AdjustStress bumps a character's stress level, clamped to [0,10].
func (b *BranchState) AdjustStress(character string, delta int) {
	cs, ok := b.CharacterStates[character]
	if !ok {
		cs = CharacterState{Relationships: make(map[string]int)}
	}
	cs.StressLevel += delta
	if cs.StressLevel > 10 {
		cs.StressLevel = 10
	}
	if cs.StressLevel < 0 {
		cs.StressLevel = 0
	}
	if b.CharacterStates == nil {
		b.CharacterStates = make(map[string]CharacterState)
	}
	b.CharacterStates[character] = cs
}
