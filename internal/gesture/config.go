package gesture

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by NewEngine when thresholds are unusable.
var ErrInvalidConfig = errors.New("invalid engine config")

// RetreatPolicy selects what happens when the hand drops back past the
// forward-reach threshold while engaged.
type RetreatPolicy int

const (
	// RetreatIgnore keeps the engagement alive regardless of reach.
	RetreatIgnore RetreatPolicy = iota
	// RetreatToStandby drops back to Standby.
	RetreatToStandby
	// RetreatToWaitingForFix drops back to WaitingForFix, re-anchored on
	// the current position. Fixation restarts once the hand reaches forward
	// again.
	RetreatToWaitingForFix
)

func (p RetreatPolicy) String() string {
	switch p {
	case RetreatIgnore:
		return "ignore"
	case RetreatToStandby:
		return "standby"
	case RetreatToWaitingForFix:
		return "waiting_for_fix"
	default:
		return fmt.Sprintf("RetreatPolicy(%d)", int(p))
	}
}

// ParseRetreatPolicy converts a config string into a RetreatPolicy.
func ParseRetreatPolicy(s string) (RetreatPolicy, error) {
	switch s {
	case "", "ignore":
		return RetreatIgnore, nil
	case "standby":
		return RetreatToStandby, nil
	case "waiting_for_fix", "fixing":
		return RetreatToWaitingForFix, nil
	default:
		return RetreatIgnore, fmt.Errorf("unknown retreat policy %q", s)
	}
}

// Config holds the engine thresholds. All of them come from configuration;
// none is baked into the state machine.
type Config struct {
	// BufferSize is the trajectory capacity.
	BufferSize int
	// MoveThreshold is the 2D radius the hand must stay within to count as still.
	MoveThreshold float64
	// ForwardDistance is how far forward (negative Z) the hand must reach
	// before a fixation can start.
	ForwardDistance float64
	// PreFixDuration is how long the hand must be still before fixing starts.
	PreFixDuration time.Duration
	// FixDuration is how long the fixation must hold before engaging.
	FixDuration time.Duration
	// TargetOffset shifts the target anchor from the engage position.
	TargetOffset Point
	// Retreat controls disengagement when the hand pulls back.
	Retreat RetreatPolicy
	// ReleaseOnExit fires the release action when the hand leaves a target
	// that already fired. When false the target resets silently.
	ReleaseOnExit bool
	// ExitGrace drops back to Standby after the hand has been over no
	// target for longer than this while engaged. Zero disables it.
	ExitGrace time.Duration
}

// DefaultConfig returns the thresholds the controller has always shipped with.
func DefaultConfig() Config {
	return Config{
		BufferSize:      DefaultTrajectoryCapacity,
		MoveThreshold:   25,
		ForwardDistance: 250,
		PreFixDuration:  100 * time.Millisecond,
		FixDuration:     500 * time.Millisecond,
		Retreat:         RetreatIgnore,
		ReleaseOnExit:   true,
	}
}

// Validate rejects configurations that would make dwell behavior undefined.
func (c Config) Validate() error {
	switch {
	case c.BufferSize < 2:
		return fmt.Errorf("%w: buffer size must be at least 2, got %d", ErrInvalidConfig, c.BufferSize)
	case c.MoveThreshold <= 0:
		return fmt.Errorf("%w: move threshold must be positive, got %v", ErrInvalidConfig, c.MoveThreshold)
	case c.ForwardDistance < 0:
		return fmt.Errorf("%w: forward distance must not be negative, got %v", ErrInvalidConfig, c.ForwardDistance)
	case c.PreFixDuration <= 0:
		return fmt.Errorf("%w: pre-fix duration must be positive, got %v", ErrInvalidConfig, c.PreFixDuration)
	case c.FixDuration <= 0:
		return fmt.Errorf("%w: fix duration must be positive, got %v", ErrInvalidConfig, c.FixDuration)
	case c.ExitGrace < 0:
		return fmt.Errorf("%w: exit grace must not be negative, got %v", ErrInvalidConfig, c.ExitGrace)
	case c.Retreat < RetreatIgnore || c.Retreat > RetreatToWaitingForFix:
		return fmt.Errorf("%w: unknown retreat policy %d", ErrInvalidConfig, int(c.Retreat))
	}
	return nil
}
