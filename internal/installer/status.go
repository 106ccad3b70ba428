package installer

import (
	"errors"

	"github.com/forgeup/forgeup/internal/catalog"
	"github.com/forgeup/forgeup/internal/state"
)

// Phase is the lifecycle position of one component within a run. A
// failed component keeps the phase it was in when it failed.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseResolved    Phase = "resolved"
	PhaseDownloading Phase = "downloading"
	PhaseVerifying   Phase = "verifying"
	PhaseExtracting  Phase = "extracting"
	PhaseRecorded    Phase = "recorded"
	PhaseConfigured  Phase = "configured"
	PhaseRemoving    Phase = "removing"
	PhaseRemoved     Phase = "removed"
)

// Result is the per-component outcome of an install, uninstall or update.
type Result struct {
	Component   catalog.Component
	Phase       Phase
	InstallPath string
	Err         error

	// Skipped is set when the component was already in the requested
	// state and the run touched neither network nor disk for it.
	Skipped bool
}

// Failed reports whether the component ended in an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Summary aggregates the per-component results of a run.
type Summary struct {
	Succeeded     int
	Skipped       int
	Failed        int
	PersistFailed bool
}

// Summarize folds results into run-level counts. PersistFailed is set
// when any component hit a state-persist failure, which callers surface
// distinctly because it risks state/filesystem divergence.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Failed():
			s.Failed++
			var persistErr *state.PersistError
			if errors.As(r.Err, &persistErr) {
				s.PersistFailed = true
			}
		case r.Skipped:
			s.Skipped++
			s.Succeeded++
		default:
			s.Succeeded++
		}
	}
	return s
}
