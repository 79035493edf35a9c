package gesture

import (
	"fmt"
	"time"
)

// ConfirmPolicy decides how a target is confirmed once the hand is inside
// it. It is either TimeBased or DepthBased.
type ConfirmPolicy interface {
	// Validate rejects zero or negative parameters.
	Validate() error
	isConfirmPolicy()
}

// TimeBased confirms after the hand has stayed inside the target for Hold.
type TimeBased struct {
	Hold time.Duration
}

// DepthBased confirms once the hand has pushed PressDepth toward the
// sensor since it entered the target.
type DepthBased struct {
	PressDepth float64
}

func (TimeBased) isConfirmPolicy()  {}
func (DepthBased) isConfirmPolicy() {}

// Validate implements ConfirmPolicy.
func (p TimeBased) Validate() error {
	if p.Hold <= 0 {
		return fmt.Errorf("hold duration must be positive, got %v", p.Hold)
	}
	return nil
}

// Validate implements ConfirmPolicy.
func (p DepthBased) Validate() error {
	if p.PressDepth <= 0 {
		return fmt.Errorf("press depth must be positive, got %v", p.PressDepth)
	}
	return nil
}

// String returns a short description used in logs and the HTTP API.
func (p TimeBased) String() string {
	return fmt.Sprintf("time(%v)", p.Hold)
}

// String returns a short description used in logs and the HTTP API.
func (p DepthBased) String() string {
	return fmt.Sprintf("depth(%v)", p.PressDepth)
}
