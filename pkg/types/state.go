package types

// TargetState tracks a target through the distribution state machine:
//
//	Pending -> Resolving -> {Skipped | Unchanged |
//	    Transforming -> Publishing -> Published} | Failed
type TargetState string

const (
	StatePending      TargetState = "pending"
	StateResolving    TargetState = "resolving"
	StateSkipped      TargetState = "skipped"
	StateUnchanged    TargetState = "unchanged"
	StateTransforming TargetState = "transforming"
	StatePublishing   TargetState = "publishing"
	StatePublished    TargetState = "published"
	StateFailed       TargetState = "failed"
)

// Terminal reports whether the state is an end state of the machine.
func (s TargetState) Terminal() bool {
	switch s {
	case StateSkipped, StateUnchanged, StatePublished, StateFailed:
		return true
	}
	return false
}
