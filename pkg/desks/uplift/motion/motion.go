// Package motion infers whether a desk is moving from its raw height
// telemetry. The desk repeats the last height for the first notification or
// two after a command, and the link occasionally delivers duplicates, so a
// naive two-sample comparison reports false stops. This detector treats any
// change from the last observed value as motion, and only declares a stop
// after a full window of agreement plus a minimum dwell since the last
// command was issued.
package motion

import "time"

const (
	// maxWindow is the number of samples held just after an observation;
	// the window is evicted back to maxWindow-1 before returning.
	maxWindow = 5

	// settleSamples is how many trailing samples (before the newest) must
	// equal the newest value for the desk to be considered stopped.
	settleSamples = 4

	// minDwell is the minimum time since the last issued command before a
	// stop verdict is allowed.
	minDwell = time.Second
)

// Detector maintains a bounded window of recent heights and a moving flag.
// It is not safe for concurrent use; a single session task owns it.
type Detector struct {
	window []float64
	moving bool
}

// NewDetector returns a detector in the idle state with an empty window.
func NewDetector() *Detector {
	return &Detector{window: make([]float64, 0, maxWindow)}
}

// Moving reports the current verdict.
func (d *Detector) Moving() bool {
	return d.moving
}

// Observe feeds one height sample into the detector. observedAt is the
// sample's arrival time and lastAction is when a command was last sent to
// the desk. It returns the updated moving verdict and whether this
// observation changed it.
func (d *Detector) Observe(inches float64, observedAt, lastAction time.Time) (moving, transitioned bool) {
	was := d.moving

	// Any change from the most recent value means the desk is in motion,
	// regardless of direction. An empty window has nothing to compare
	// against and never triggers.
	if n := len(d.window); n > 0 && d.window[n-1] != inches {
		d.moving = true
	}

	d.window = append(d.window, inches)

	if len(d.window) == maxWindow {
		if d.moving && observedAt.Sub(lastAction) >= minDwell && d.settled(inches) {
			d.moving = false
		}
		d.window = d.window[1:]
	}

	return d.moving, d.moving != was
}

// settled reports whether the oldest settleSamples entries all equal the
// newest value.
func (d *Detector) settled(inches float64) bool {
	for _, v := range d.window[:settleSamples] {
		if v != inches {
			return false
		}
	}
	return true
}
