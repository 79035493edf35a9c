package gesture

import (
	"fmt"
	"math"
)

// Region is a hit area in coordinates relative to the engine anchor.
type Region interface {
	// Contains reports whether p, relative to the anchor, lies inside.
	Contains(p Point) bool
	// Validate returns an error for degenerate shapes.
	Validate() error
}

// Circle is a round hit area.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains implements Region. The boundary counts as inside.
func (c Circle) Contains(p Point) bool {
	return c.Center.DistanceTo(p) <= c.Radius
}

// Validate implements Region.
func (c Circle) Validate() error {
	if c.Radius <= 0 || math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) {
		return fmt.Errorf("circle radius must be positive, got %v", c.Radius)
	}
	return nil
}

// Rect is an axis-aligned hit area given by its top-left corner and size.
type Rect struct {
	Min    Point   `json:"min"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains implements Region. The boundary counts as inside.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Min.X+r.Width &&
		p.Y >= r.Min.Y && p.Y <= r.Min.Y+r.Height
}

// Validate implements Region.
func (r Rect) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("rect size must be positive, got %vx%v", r.Width, r.Height)
	}
	return nil
}
