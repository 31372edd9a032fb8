package types

// PublishResult describes one completed publish into a version store.
type PublishResult struct {
	// Version is the allocated (or, for an idempotent no-op, the
	// existing) version number.
	Version int

	// Path is the published entry inside the versions directory.
	Path string

	// Reused is true when publish was a no-op because the currently
	// linked version was already identical.
	Reused bool
}

// TargetResult is the terminal outcome of one target in a run.
type TargetResult struct {
	Target  string
	State   TargetState
	Version int
	// Message is a short human-readable description of what happened
	// (or, in dry-run mode, what would have happened).
	Message string
	Err     error
}

// RunSummary aggregates per-target outcomes for one engine run. Any
// failed target should cause a non-zero process exit.
type RunSummary struct {
	Published int
	Unchanged int
	Skipped   int
	Failed    int

	Results []TargetResult
}

// Add records a result and updates the counters.
func (s *RunSummary) Add(r TargetResult) {
	s.Results = append(s.Results, r)
	switch r.State {
	case StatePublished:
		s.Published++
	case StateUnchanged:
		s.Unchanged++
	case StateSkipped:
		s.Skipped++
	case StateFailed:
		s.Failed++
	}
}

// OK reports whether the run completed without target failures.
func (s *RunSummary) OK() bool {
	return s.Failed == 0
}
