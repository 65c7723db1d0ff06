package branch

import "fmt"

// InvariantViolationError is fatal for a branch: the state that produced
// it must not be persisted. It indicates an authoring or generation bug
// upstream, not a runtime fault the engine can repair.
type InvariantViolationError struct {
	BranchID  string
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("branch %s: invariant violated: %s", e.BranchID, e.Invariant)
	}
	return fmt.Sprintf("branch %s: invariant violated: %s (%s)", e.BranchID, e.Invariant, e.Detail)
}
