package tracker

import (
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/timestep"
)

// registeredTracker registers an Environment with some Tracker so
// that the Tracker tracks data from the registered Environment only.
// registeredTracker itself is a Tracker.
//
// This is useful when an experiment runs on a wrapper that modifies
// rewards, for example a wrappers.ClipReward, but the unmodified
// rewards of the wrapped Environment should be tracked.
type registeredTracker struct {
	Tracker
	env environment.Environment
}

// Register registers a new Tracker with an Environment, to track data
// from the registered Environment only. The TimeStep passed to Track is
// ignored in favour of the registered Environment's current TimeStep.
func Register(t Tracker, env environment.Environment) Tracker {
	return &registeredTracker{t, env}
}

// Track calls Track() on the embedded Tracker using the most recent
// TimeStep from the registered Environment.
func (r *registeredTracker) Track(timestep.TimeStep) {
	r.Tracker.Track(r.env.CurrentTimeStep())
}
