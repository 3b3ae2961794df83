// Package meter implements the smoothed peak-level readings the host
// publishes per output, so the UI doesn't show a raw, jittery peak
// sample every tick.
package meter

import (
	"math"
	"sync/atomic"
)

// DefaultAlpha is the EWMA weight applied to each new sample.
const DefaultAlpha = 0.3

// Smoother holds an exponentially-weighted moving average of peak
// level readings, safe to update from an audio callback thread and
// read from the UI thread.
type Smoother struct {
	alpha float64
	bits  atomic.Uint64
}

// New returns a Smoother with the given EWMA weight.
func New(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

// Update folds sample into the running average.
func (s *Smoother) Update(sample float64) {
	prev := math.Float64frombits(s.bits.Load())
	next := prev*(1-s.alpha) + sample*s.alpha
	s.bits.Store(math.Float64bits(next))
}

// Value returns the current smoothed level.
func (s *Smoother) Value() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Reset drops the smoothed level to zero atomically, used when a
// handler goes from running to paused or stopped so a stale peak
// reading doesn't linger.
func (s *Smoother) Reset() {
	s.bits.Store(0)
}
