package gesture

import (
	"fmt"
	"time"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventStateChanged is emitted on every engagement state transition.
	EventStateChanged EventKind = iota + 1
	// EventEngagementStarted is emitted when the engine enters Engaged from
	// an idle state.
	EventEngagementStarted
	// EventEngagementEnded is emitted when the engine leaves Engaged or
	// Activated for an idle state.
	EventEngagementEnded
	// EventTargetConfirmed is emitted when a target fires.
	EventTargetConfirmed
	// EventTargetReleased is emitted when a fired target is released.
	EventTargetReleased
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventEngagementStarted:
		return "engagement_started"
	case EventEngagementEnded:
		return "engagement_ended"
	case EventTargetConfirmed:
		return "target_confirmed"
	case EventTargetReleased:
		return "target_released"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is emitted synchronously by the engine from inside FeedPosition,
// HandLost, or a target-set change.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Time     time.Time       `json:"time"`
	From     EngagementState `json:"from"`
	To       EngagementState `json:"to"`
	TargetID string          `json:"target_id,omitempty"`
}

// Handler receives engine events. Handlers run on the caller's goroutine
// and must not block.
type Handler func(Event)
