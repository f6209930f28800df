package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	lm "github.com/ayusman/mudra/internal/landmark"
)

// IdleTimeout is how long the service process may sit unused before it is
// shut down. It is restarted on the next Detect.
const IdleTimeout = 30 * time.Second

const scriptName = "mediapipe_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame on the
// process's stdin; the reply is one JSON line on stdout.
type MediaPipeDetector struct {
	config    Config
	script    string
	python    string
	logger    *slog.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	script := config.Script
	if script == "" {
		script = findMediaPipeScript()
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("mediapipe script: %w", err)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
		logger: logger,
	}, nil
}

// Detect analyzes a frame and returns the detected hands and pose.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (lm.Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return lm.Observation{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return lm.Observation{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	obs, err := exchange(d.stdin, d.stdout, buf.GetBytes(), d.config.MaxHands)
	if err != nil {
		// A broken pipe leaves the stream out of sync; restart next time.
		d.logger.Warn("mediapipe exchange failed, restarting service", "error", err)
		d.shutdown()
		return lm.Observation{}, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return obs, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	args := []string{d.script}
	if d.config.MaxHands > 0 {
		args = append(args, "--max-hands", strconv.Itoa(d.config.MaxHands))
	}
	if d.config.MinConfidence > 0 {
		args = append(args, "--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64))
	}
	if d.config.MinTrackingConf > 0 {
		args = append(args, "--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64))
	}

	d.cmd = exec.Command(d.python, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()
	d.logger.Info("mediapipe service started", "python", d.python, "script", d.script)

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
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

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if time.Since(d.lastUsed) < IdleTimeout {
			return
		}
		d.logger.Debug("mediapipe service idle, shutting down")
		d.shutdown()
	})
}

// exchange sends one encoded frame and reads the reply.
func exchange(w io.Writer, r *bufio.Reader, frame []byte, maxHands int) (lm.Observation, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(frame)))

	if _, err := w.Write(length); err != nil {
		return lm.Observation{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return lm.Observation{}, fmt.Errorf("write data: %w", err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return lm.Observation{}, fmt.Errorf("read response: %w", err)
	}
	return parseResponse(line, maxHands)
}

// jsonResponse is the reply of the Python service.
type jsonResponse struct {
	Hands []jsonHand `json:"hands"`
	Pose  lm.Set     `json:"pose"`
	Error string     `json:"error,omitempty"`
}

type jsonHand struct {
	Points     lm.Set  `json:"points"`
	Handedness string  `json:"handedness"`
	Score      float64 `json:"score"`
}

func parseResponse(line []byte, maxHands int) (lm.Observation, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return lm.Observation{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return lm.Observation{}, errors.New("mediapipe: " + resp.Error)
	}

	var obs lm.Observation
	for _, h := range resp.Hands {
		if maxHands > 0 && len(obs.Hands) == maxHands {
			break
		}
		if len(h.Points) == 0 {
			continue
		}
		obs.Hands = append(obs.Hands, h.Points)
	}
	if len(resp.Pose) > 0 {
		obs.Pose = resp.Pose
	}
	return obs, nil
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".mudra", "scripts", scriptName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	// Get executable directory to find project root
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
