package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands ...HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]HandLandmarks, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenHand returns an open palm whose middle finger MCP sits at the
// normalized image position (x, y), with the given body-relative position.
func OpenHand(handedness string, score, x, y float64, body Point3D) HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: handedness,
		Score:      score,
		Body:       body,
	}

	// Offsets from the palm point for an upright open hand.
	offsets := [NumLandmarks]Point3D{
		Wrist:     {X: 0, Y: 0.14},
		ThumbCMC:  {X: 0.05, Y: 0.09, Z: 0.02},
		ThumbMCP:  {X: 0.12, Y: 0.04, Z: 0.03},
		ThumbIP:   {X: 0.18, Y: -0.01, Z: 0.03},
		ThumbTip:  {X: 0.23, Y: -0.06, Z: 0.03},
		IndexMCP:  {X: 0.05, Y: 0.02},
		IndexPIP:  {X: 0.07, Y: -0.11},
		IndexDIP:  {X: 0.08, Y: -0.21},
		IndexTip:  {X: 0.08, Y: -0.31},
		MiddleMCP: {},
		MiddlePIP: {Y: -0.14},
		MiddleDIP: {Y: -0.26},
		MiddleTip: {Y: -0.38},
		RingMCP:   {X: -0.05, Y: 0.02},
		RingPIP:   {X: -0.07, Y: -0.11},
		RingDIP:   {X: -0.08, Y: -0.21},
		RingTip:   {X: -0.08, Y: -0.31},
		PinkyMCP:  {X: -0.10, Y: 0.04},
		PinkyPIP:  {X: -0.13, Y: -0.06},
		PinkyDIP:  {X: -0.15, Y: -0.16},
		PinkyTip:  {X: -0.16, Y: -0.24},
	}

	for i, o := range offsets {
		landmarks.Points[i] = Point3D{X: x + o.X, Y: y + o.Y, Z: o.Z}
	}
	return landmarks
}
