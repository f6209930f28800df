package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mudra.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Scoring != compare.DefaultCalibration() {
		t.Errorf("Scoring = %+v", cfg.Scoring)
	}
	if cfg.Session.TickRate != 30 || cfg.Session.FeedbackThreshold != 15 || cfg.Session.FeedbackTimeout != 5*time.Second {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Coach.Provider != ProviderFallback || cfg.Coach.CacheSize != 100 || cfg.Coach.CacheTTL != 5*time.Minute {
		t.Errorf("Coach = %+v", cfg.Coach)
	}
	if cfg.Coach.Limits != coach.DefaultLimits() {
		t.Errorf("Limits = %+v", cfg.Coach.Limits)
	}
	if cfg.Detector.MaxHands != 2 || cfg.Camera.FPS != 15 || cfg.Camera.MotionThreshold != 1.0 {
		t.Errorf("Detector = %+v Camera = %+v", cfg.Detector, cfg.Camera)
	}
	if filepath.Base(cfg.Store.DB) != "mudra.db" {
		t.Errorf("DB = %q", cfg.Store.DB)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
store:
  data_dir: /tmp/mudra-test
scoring:
  hand_sensitivity: 2.0
  tolerance_degrees: 12
session:
  feedback_timeout: 2s
coach:
  provider: http
  url: http://localhost:5001/feedback
  requests_per_minute: 20
  user_requests_per_minute: 5
camera:
  device: 1
  fps: 30
  still_hold: 500ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.DB != filepath.Join("/tmp/mudra-test", "mudra.db") {
		t.Errorf("DB = %q", cfg.Store.DB)
	}
	if cfg.Scoring.HandSensitivity != 2.0 || cfg.Scoring.ToleranceDegrees != 12 {
		t.Errorf("Scoring = %+v", cfg.Scoring)
	}
	// Unset scoring fields keep their defaults.
	if cfg.Scoring.BodySensitivity != 1.2 || cfg.Scoring.FingerSpreadDegrees != 30 {
		t.Errorf("Scoring defaults lost: %+v", cfg.Scoring)
	}
	if cfg.Session.FeedbackTimeout != 2*time.Second {
		t.Errorf("FeedbackTimeout = %v", cfg.Session.FeedbackTimeout)
	}
	if cfg.Coach.Provider != ProviderHTTP || cfg.Coach.Limits.PerMinute != 20 || cfg.Coach.Limits.UserPerMinute != 5 {
		t.Errorf("Coach = %+v", cfg.Coach)
	}
	if cfg.Coach.Limits.PerHour != 0 {
		t.Errorf("PerHour = %d, want 0 (disabled) when other limits are set", cfg.Coach.Limits.PerHour)
	}
	if cfg.Camera.Device != 1 || cfg.Camera.FPS != 30 || cfg.Camera.StillHold != 500*time.Millisecond {
		t.Errorf("Camera = %+v", cfg.Camera)
	}
	if cfg.Camera.Width != 640 {
		t.Errorf("Camera.Width = %d, want default 640", cfg.Camera.Width)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MUDRA_ADDR", ":7070")
	t.Setenv("MUDRA_DB", "/tmp/other.db")
	t.Setenv("MUDRA_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Store.DB != "/tmp/other.db" || cfg.Log.Level != "debug" {
		t.Errorf("env overrides not applied: %+v %+v %+v", cfg.Server, cfg.Store, cfg.Log)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "server: [", "parse"},
		{"unknown provider", "coach:\n  provider: oracle\n", "unknown provider"},
		{"http without url", "coach:\n  provider: http\n", "needs a url"},
		{"plugin without name", "coach:\n  provider: plugin\n", "plugin name"},
		{"bad log level", "log:\n  level: loud\n", "unknown level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "sign", "hello")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"sign":"hello"`) {
		t.Errorf("json output = %q", out)
	}

	buf.Reset()
	LogConfig{Level: "debug"}.NewLogger(&buf).Debug("text line")
	if !strings.Contains(buf.String(), "msg=\"text line\"") {
		t.Errorf("text output = %q", buf.String())
	}
}
