package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// BridgeScript is the sensor bridge looked up next to the binary and in
// the data directory.
const BridgeScript = "hand_service.py"

// bridgeIdleTimeout stops the bridge process after this long without frames.
const bridgeIdleTimeout = 30 * time.Second

// ErrBridgeNotFound is returned when no sensor bridge script can be located.
var ErrBridgeNotFound = errors.New("sensor bridge not found")

// BridgeDetector implements Detector by streaming JPEG frames to a sensor
// bridge subprocess and reading one JSON line of hands per frame.
//
// Wire format: 4-byte big-endian length followed by the JPEG bytes on
// stdin; {"hands":[...]} terminated by a newline on stdout.
type BridgeDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewBridgeDetector creates a detector backed by the sensor bridge found in
// dataDir or the usual relative locations. The process starts lazily on
// the first frame.
func NewBridgeDetector(config Config, dataDir string) (*BridgeDetector, error) {
	script := findBridgeScript(dataDir)
	if script == "" {
		return nil, ErrBridgeNotFound
	}
	return &BridgeDetector{
		config: config,
		script: script,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *BridgeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response bridgeResponse
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if h.Score < d.config.MinConfidence {
			continue
		}
		result = append(result, h.toHandLandmarks())
	}

	d.resetIdleTimer()
	return result, nil
}

// Close shuts down the bridge process.
func (d *BridgeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *BridgeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := findVenvPython(filepath.Dir(filepath.Dir(d.script)))
	if python == "" {
		python = "python3"
	}

	d.cmd = exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start sensor bridge: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	log.Info().Str("script", d.script).Int("pid", d.cmd.Process.Pid).Msg("sensor bridge started")
	return nil
}

func (d *BridgeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	log.Info().Err(err).Msg("sensor bridge stopped")
	return err
}

func (d *BridgeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(bridgeIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findBridgeScript(dataDir string) string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", BridgeScript),
		filepath.Join("..", "scripts", BridgeScript),
		filepath.Join(execDir, "scripts", BridgeScript),
	}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "scripts", BridgeScript))
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a virtual environment interpreter next to the
// bridge script's root.
func findVenvPython(root string) string {
	return firstExisting([]string{
		filepath.Join(root, "venv", "bin", "python"),
		filepath.Join("venv", "bin", "python"),
	})
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

type bridgeResponse struct {
	Hands []jsonHand `json:"hands"`
}

// jsonHand is one hand as reported by the bridge.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
	Body       Point3D   `json:"body"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Body:       h.Body,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
