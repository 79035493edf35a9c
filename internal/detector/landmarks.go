// Package detector provides the hand source the control loop reads from:
// per-hand landmarks, handedness, confidence and body-relative position.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the sensor bridge.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents one detected hand.
//
// Points are normalized image coordinates in [0, 1]. Body is the palm
// position relative to the torso in millimetres, with negative Z toward
// the sensor; bridges without depth leave it zero.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
	Body       Point3D               `json:"body"`
}

// Palm returns the normalized image position used as the hand's cursor
// point: the middle finger MCP joint, which moves least when fingers curl.
func (h *HandLandmarks) Palm() Point3D {
	return h.Points[MiddleMCP]
}

// ScreenPosition maps the palm onto a width x height screen.
func (h *HandLandmarks) ScreenPosition(width, height float64) (x, y float64) {
	p := h.Palm()
	return p.X * width, p.Y * height
}
