package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultQuietPeriod is how long the scene must stay still before
	// the gate reports idle.
	DefaultQuietPeriod = 2 * time.Second
)

// MotionDetector measures frame-to-frame change and gates the control loop
// between its active and idle tick rates.
type MotionDetector struct {
	mu          sync.Mutex
	threshold   float64
	quiet       time.Duration
	prevGray    gocv.Mat
	initialized bool
	lastMotion  time.Time
}

// NewMotionDetector creates a detector. threshold is the percentage of
// pixels that must change to count as motion (1.0 means 1%). quiet is how
// long Active keeps reporting true after the last motion; non-positive
// values use DefaultQuietPeriod.
func NewMotionDetector(threshold float64, quiet time.Duration) *MotionDetector {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &MotionDetector{
		threshold: threshold,
		quiet:     quiet,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion
// was seen and the percentage of pixels that changed. The first frame
// after construction or Reset only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detect(frame)
}

func (m *MotionDetector) detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Active runs Detect and reports whether the loop should tick at its
// active rate: true while motion was seen within the quiet period.
func (m *MotionDetector) Active(frame *gocv.Mat, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if moved, _ := m.detect(frame); moved {
		m.lastMotion = now
	}
	return !m.lastMotion.IsZero() && now.Sub(m.lastMotion) < m.quiet
}

// Reset drops the baseline frame and the motion history.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *MotionDetector) clear() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.lastMotion = time.Time{}
}
