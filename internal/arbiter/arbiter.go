// Package arbiter decides which of the user's two hands drives the gesture
// engine on each tick.
package arbiter

import (
	"fmt"
	"time"

	"github.com/ayusman/handcontrol/internal/detector"
	"github.com/ayusman/handcontrol/internal/gesture"
)

// DefaultMinConfidence is the joint confidence a hand must exceed to count.
const DefaultMinConfidence = 0.5

// Hand identifies the controlling hand.
type Hand int

const (
	// None means no hand is confident enough to control.
	None Hand = iota
	// Left is the user's left hand.
	Left
	// Right is the user's right hand.
	Right
)

func (h Hand) String() string {
	switch h {
	case None:
		return "none"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Hand(%d)", int(h))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hand) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Candidate is one hand as seen by the sensor on the current tick.
// A zero Candidate has zero confidence and never wins.
type Candidate struct {
	Confidence float64
	Pos2D      gesture.Point
	Pos3D      gesture.Vec3
}

// Sink consumes the arbitrated hand. *gesture.Engine satisfies it.
type Sink interface {
	FeedPosition(pos2D gesture.Point, pos3D gesture.Vec3, now time.Time)
	HandLost()
}

// Arbiter remembers the controlling hand between ticks.
type Arbiter struct {
	minConfidence float64
	current       Hand
}

// New creates an Arbiter. Non-positive thresholds use DefaultMinConfidence.
func New(minConfidence float64) *Arbiter {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Arbiter{minConfidence: minConfidence}
}

// Select picks the hand to track without changing the arbiter.
//
// A hand is confident when its confidence strictly exceeds the threshold.
// With exactly one confident hand, that hand wins. With both, the hand
// nearer the sensor (smaller Z) wins, and a tie goes to the right hand.
func (a *Arbiter) Select(left, right Candidate) Hand {
	leftOK := left.Confidence > a.minConfidence
	rightOK := right.Confidence > a.minConfidence

	switch {
	case leftOK && rightOK:
		if right.Pos3D.Z > left.Pos3D.Z {
			return Left
		}
		return Right
	case rightOK:
		return Right
	case leftOK:
		return Left
	default:
		return None
	}
}

// Drive runs one tick: it selects a hand, resets sink when the selection
// is empty or differs from the previous tick, then feeds the selected hand.
func (a *Arbiter) Drive(sink Sink, left, right Candidate, now time.Time) Hand {
	hand := a.Select(left, right)
	if hand == None || hand != a.current {
		sink.HandLost()
		a.current = hand
	}

	switch hand {
	case Left:
		sink.FeedPosition(left.Pos2D, left.Pos3D, now)
	case Right:
		sink.FeedPosition(right.Pos2D, right.Pos3D, now)
	}
	return hand
}

// Current returns the hand selected on the last Drive.
func (a *Arbiter) Current() Hand {
	return a.current
}

// Reset forgets the controlling hand.
func (a *Arbiter) Reset() {
	a.current = None
}

// Candidates splits detector output into left and right candidates,
// projecting each palm onto a width x height screen. When the detector
// reports two hands with the same handedness, the more confident one wins.
func Candidates(hands []detector.HandLandmarks, width, height float64) (left, right Candidate) {
	for i := range hands {
		h := &hands[i]
		x, y := h.ScreenPosition(width, height)
		c := Candidate{
			Confidence: h.Score,
			Pos2D:      gesture.Point{X: x, Y: y},
			Pos3D:      gesture.Vec3{X: h.Body.X, Y: h.Body.Y, Z: h.Body.Z},
		}

		switch h.Handedness {
		case detector.HandLeft:
			if c.Confidence > left.Confidence {
				left = c
			}
		case detector.HandRight:
			if c.Confidence > right.Confidence {
				right = c
			}
		}
	}
	return left, right
}
