package escape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/branch-engine/pkg/branch"
)

// ErrUnknownCondition marks a gating condition the engine cannot
// evaluate. Callers treat it as "gating failed", not as a fatal error.
type ErrUnknownCondition struct {
	Condition string
}

func (e *ErrUnknownCondition) Error() string {
	return fmt.Sprintf("unknown escape hatch condition %q", e.Condition)
}

// evalCondition evaluates one activation condition against branch state.
// Supported forms:
//
//	fact:<key>                    world fact holds
//	premise_progression >= <n>    also <=, >, <
//	derailment_risk >= <n>
//	episode >= <n>
//	stress:<character> >= <n>
func evalCondition(b *branch.BranchState, condition string) (bool, error) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return false, &ErrUnknownCondition{Condition: condition}
	}

	if key, ok := strings.CutPrefix(cond, "fact:"); ok {
		return b.HasFact(strings.TrimSpace(key)), nil
	}

	field, op, threshold, err := splitComparison(cond)
	if err != nil {
		return false, err
	}

	var value float64
	switch {
	case field == "premise_progression":
		value = b.WorldState.PremiseProgression
	case field == "derailment_risk":
		value = float64(b.DerailmentRisk)
	case field == "episode":
		value = float64(b.CurrentEpisode)
	case strings.HasPrefix(field, "stress:"):
		name := strings.TrimSpace(strings.TrimPrefix(field, "stress:"))
		cs, ok := b.CharacterStates[name]
		if !ok {
			return false, nil
		}
		value = float64(cs.StressLevel)
	default:
		return false, &ErrUnknownCondition{Condition: condition}
	}

	switch op {
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	default:
		return false, &ErrUnknownCondition{Condition: condition}
	}
}

func splitComparison(cond string) (field, op string, threshold float64, err error) {
	// Two-character operators first so ">=" is not read as ">".
	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if left, right, found := strings.Cut(cond, candidate); found {
			value, perr := strconv.ParseFloat(strings.TrimSpace(right), 64)
			if perr != nil {
				return "", "", 0, &ErrUnknownCondition{Condition: cond}
			}
			return strings.TrimSpace(left), candidate, value, nil
		}
	}
	return "", "", 0, &ErrUnknownCondition{Condition: cond}
}
