// Package gesture turns a stream of timestamped hand positions into dwell
// selections: a trajectory buffer with a stability test, per-target
// confirmation machines, and the engagement state machine that drives them.
//
// Nothing in this package is safe for concurrent use. Callers feed one
// sample per tick from a single goroutine.
package gesture

import (
	"math"
	"time"
)

// Point is a position in 2D screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Vec3 is a body-relative position in sensor space, in millimetres. Z grows
// away from the sensor, so a hand pushed forward of the torso has negative Z.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is a single hand observation.
type Sample struct {
	Time  time.Time `json:"time"`
	Pos2D Point     `json:"pos2d"`
	Pos3D Vec3      `json:"pos3d"`
}
