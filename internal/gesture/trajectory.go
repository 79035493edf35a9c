package gesture

import "time"

// DefaultTrajectoryCapacity is the number of samples kept per hand,
// several seconds of history at the usual tick rate.
const DefaultTrajectoryCapacity = 150

// Trajectory is a fixed-capacity ring of recent samples for one hand,
// ordered oldest to newest. When full, Push evicts the oldest sample.
type Trajectory struct {
	data []Sample
	pos  int
	full bool
}

// NewTrajectory creates a Trajectory holding at most capacity samples.
// Non-positive capacities fall back to DefaultTrajectoryCapacity.
func NewTrajectory(capacity int) *Trajectory {
	if capacity <= 0 {
		capacity = DefaultTrajectoryCapacity
	}
	return &Trajectory{
		data: make([]Sample, capacity),
	}
}

// Push appends s as the newest sample. A sample stamped earlier than the
// current newest is clamped to the newest timestamp so the buffer stays
// non-decreasing in time.
func (t *Trajectory) Push(s Sample) {
	if t.Len() > 0 {
		if newest := t.Newest(); s.Time.Before(newest.Time) {
			s.Time = newest.Time
		}
	}

	t.data[t.pos] = s
	t.pos++
	if t.pos >= len(t.data) {
		t.pos = 0
		t.full = true
	}
}

// Len returns the number of samples held.
func (t *Trajectory) Len() int {
	if t.full {
		return len(t.data)
	}
	return t.pos
}

// Cap returns the buffer capacity.
func (t *Trajectory) Cap() int {
	return len(t.data)
}

// Clear drops every sample.
func (t *Trajectory) Clear() {
	clear(t.data)
	t.pos = 0
	t.full = false
}

// At returns the i-th sample counting from the oldest (0) to the newest
// (Len()-1). It panics if i is out of range.
func (t *Trajectory) At(i int) Sample {
	n := t.Len()
	if i < 0 || i >= n {
		panic("gesture: trajectory index out of range")
	}
	if !t.full {
		return t.data[i]
	}
	return t.data[(t.pos+i)%len(t.data)]
}

// Newest returns the most recent sample. It panics on an empty buffer.
func (t *Trajectory) Newest() Sample {
	return t.At(t.Len() - 1)
}

// Samples returns a copy of the buffer contents, oldest first.
func (t *Trajectory) Samples() []Sample {
	n := t.Len()
	out := make([]Sample, n)
	if t.full {
		copy(out, t.data[t.pos:])
		copy(out[len(t.data)-t.pos:], t.data[:t.pos])
	} else {
		copy(out, t.data[:t.pos])
	}
	return out
}

// IsStableFor reports whether the newest position has stayed within
// radius (2D) for at least minDuration.
//
// The scan walks backward from the newest sample and stops at the first
// sample outside radius, so a single outlier breaks an otherwise long
// window. It succeeds as soon as it reaches a sample at least minDuration
// older than the newest one.
func (t *Trajectory) IsStableFor(minDuration time.Duration, radius float64) bool {
	n := t.Len()
	if n < 2 {
		return false
	}

	newest := t.At(n - 1)
	for i := n - 2; i >= 0; i-- {
		s := t.At(i)
		if newest.Pos2D.DistanceTo(s.Pos2D) > radius {
			return false
		}
		if newest.Time.Sub(s.Time) >= minDuration {
			return true
		}
	}
	return false
}
