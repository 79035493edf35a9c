package gesture

import (
	"fmt"
	"time"
)

// TargetState is the confirmation state of a single target.
type TargetState int

const (
	// TargetOutside means the hand is not over the target.
	TargetOutside TargetState = iota
	// TargetInside means the hand is over the target and confirmation is in progress.
	TargetInside
	// TargetConfirmed means the target fired on this entry.
	TargetConfirmed
)

func (s TargetState) String() string {
	switch s {
	case TargetOutside:
		return "outside"
	case TargetInside:
		return "inside"
	case TargetConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("TargetState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TargetState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transition is the externally visible outcome of one target update.
type transition int

const (
	transitionNone transition = iota
	transitionConfirmed
	transitionReleased
)

// Target is a virtual button: a region bound to a press action that must be
// held (TimeBased) or pushed (DepthBased) before it fires.
type Target struct {
	id        string
	region    Region
	policy    ConfirmPolicy
	onConfirm func()
	onRelease func()

	state      TargetState
	progress   float64
	enteredAt  time.Time
	entryDepth float64
	fired      bool
}

func newTarget(id string, region Region, policy ConfirmPolicy, onConfirm, onRelease func()) *Target {
	return &Target{
		id:        id,
		region:    region,
		policy:    policy,
		onConfirm: onConfirm,
		onRelease: onRelease,
	}
}

// ID returns the target identifier.
func (t *Target) ID() string { return t.id }

// State returns the current confirmation state.
func (t *Target) State() TargetState { return t.state }

// Progress returns confirmation progress in [0, 1].
func (t *Target) Progress() float64 { return t.progress }

// update advances the machine for one tick. inside is the hit-test result,
// depth the hand's sensor-space Z.
//
// Leaving the region always drops to TargetOutside and zeroes progress; a
// single boundary-crossing tick cancels any confirmation in flight.
func (t *Target) update(inside bool, depth float64, now time.Time, releaseOnExit bool) transition {
	if !inside {
		wasFired := t.fired
		t.reset()
		if wasFired && releaseOnExit {
			return transitionReleased
		}
		return transitionNone
	}

	if t.state == TargetOutside {
		t.state = TargetInside
		t.enteredAt = now
		t.entryDepth = depth
		t.progress = 0
		t.fired = false
		return transitionNone
	}

	switch p := t.policy.(type) {
	case TimeBased:
		t.progress = min(float64(now.Sub(t.enteredAt))/float64(p.Hold), 1)
		if t.progress >= 1 && !t.fired {
			t.fired = true
			t.state = TargetConfirmed
			return transitionConfirmed
		}
		// A fired time-based target settles back to inside and does not
		// fire again until the hand leaves and re-enters.
		t.state = TargetInside

	case DepthBased:
		t.progress = clamp01((t.entryDepth - depth) / p.PressDepth)
		if t.progress >= 1 {
			if t.state != TargetConfirmed {
				t.state = TargetConfirmed
				t.fired = true
				return transitionConfirmed
			}
		} else if t.state == TargetConfirmed {
			t.state = TargetInside
			t.fired = false
			return transitionReleased
		}
	}

	return transitionNone
}

// reset returns the target to TargetOutside without firing anything.
func (t *Target) reset() {
	t.state = TargetOutside
	t.progress = 0
	t.fired = false
	t.enteredAt = time.Time{}
	t.entryDepth = 0
}

func (t *Target) view() TargetView {
	return TargetView{
		ID:       t.id,
		State:    t.state,
		Progress: t.progress,
		Policy:   fmt.Sprint(t.policy),
		Region:   t.region,
	}
}

// TargetView is a read-only copy of a target for rendering collaborators.
type TargetView struct {
	ID       string      `json:"id"`
	State    TargetState `json:"state"`
	Progress float64     `json:"progress"`
	Policy   string      `json:"policy"`
	Region   Region      `json:"region"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
