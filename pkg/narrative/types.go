package narrative

// ChoiceType classifies what a decision point does to the story.
type ChoiceType string

const (
	ChoiceTypeCharacterDefining   ChoiceType = "character-defining"
	ChoiceTypePremiseTesting      ChoiceType = "premise-testing"
	ChoiceTypePlotAdvancing       ChoiceType = "plot-advancing"
	ChoiceTypeEscapeTriggering    ChoiceType = "escape-triggering"
	ChoiceTypeRelationshipShaping ChoiceType = "relationship-shaping"
)

// IsValid reports whether the choice type is one of the known values.
func (ct ChoiceType) IsValid() bool {
	switch ct {
	case ChoiceTypeCharacterDefining, ChoiceTypePremiseTesting,
		ChoiceTypePlotAdvancing, ChoiceTypeEscapeTriggering,
		ChoiceTypeRelationshipShaping:
		return true
	}
	return false
}

// Magnitude is the ordinal weight of a choice, from micro to catastrophic.
type Magnitude string

const (
	MagnitudeMicro        Magnitude = "micro"
	MagnitudeMinor        Magnitude = "minor"
	MagnitudeModerate     Magnitude = "moderate"
	MagnitudeMajor        Magnitude = "major"
	MagnitudePivotal      Magnitude = "pivotal"
	MagnitudeCatastrophic Magnitude = "catastrophic"
)

var magnitudeRanks = map[Magnitude]int{
	MagnitudeMicro:        0,
	MagnitudeMinor:        1,
	MagnitudeModerate:     2,
	MagnitudeMajor:        3,
	MagnitudePivotal:      4,
	MagnitudeCatastrophic: 5,
}

// Rank returns the ordinal position of the magnitude, or -1 if unknown.
func (m Magnitude) Rank() int {
	if r, ok := magnitudeRanks[m]; ok {
		return r
	}
	return -1
}

// IsValid reports whether the magnitude is one of the known values.
func (m Magnitude) IsValid() bool {
	return m.Rank() >= 0
}

// DivergenceLevel maps magnitude to the default divergence label used
// when branching potential is generated rather than authored.
func (m Magnitude) DivergenceLevel() string {
	switch {
	case m.Rank() <= MagnitudeMinor.Rank():
		return "low"
	case m.Rank() <= MagnitudeMajor.Rank():
		return "moderate"
	default:
		return "extreme"
	}
}

// Scope is the blast radius of a choice.
type Scope string

const (
	ScopeInterpersonal Scope = "interpersonal"
	ScopeGlobal        Scope = "global"
	ScopeMeta          Scope = "meta"
)

// IsValid reports whether the scope is one of the known values.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeInterpersonal, ScopeGlobal, ScopeMeta:
		return true
	}
	return false
}

// maxSeverityByRank maps magnitude rank to the highest severity a
// consequence may declare before the scope bonus is applied.
var maxSeverityByRank = [...]int{2, 3, 5, 7, 9, 10}

// MaxSeverity returns the highest consequence severity allowed for a
// choice of the given magnitude and scope. Severity is capped at 10.
func MaxSeverity(m Magnitude, s Scope) int {
	rank := m.Rank()
	if rank < 0 {
		return 0
	}
	max := maxSeverityByRank[rank]
	switch s {
	case ScopeGlobal:
		max++
	case ScopeMeta:
		max += 2
	}
	if max > 10 {
		max = 10
	}
	return max
}
