// Package config loads mudra configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	"github.com/ayusman/mudra/internal/detector"
)

// Coaching providers.
const (
	ProviderFallback = "fallback"
	ProviderHTTP     = "http"
	ProviderPlugin   = "plugin"
)

// Config is the top-level mudra configuration.
type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Store    StoreConfig         `yaml:"store"`
	Log      LogConfig           `yaml:"log"`
	Scoring  compare.Calibration `yaml:"scoring"`
	Session  SessionConfig       `yaml:"session"`
	Coach    CoachConfig         `yaml:"coach"`
	Detector detector.Config     `yaml:"detector"`
	Camera   CameraConfig        `yaml:"camera"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// AllowedOrigins limits browser origins for the practice socket. Empty
	// allows same-origin requests only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StoreConfig locates persistent data.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
	DB      string `yaml:"db"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// SessionConfig controls practice sessions.
type SessionConfig struct {
	TickRate          int           `yaml:"tick_rate"`
	FeedbackThreshold float64       `yaml:"feedback_threshold_degrees"`
	FeedbackTimeout   time.Duration `yaml:"feedback_timeout"`
}

// CoachConfig selects and tunes the coaching text provider.
type CoachConfig struct {
	Provider  string        `yaml:"provider"` // fallback | http | plugin
	URL       string        `yaml:"url"`
	PluginDir string        `yaml:"plugin_dir"`
	Plugin    string        `yaml:"plugin"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
	Limits    coach.Limits  `yaml:",inline"`
}

// CameraConfig selects the capture device and motion gating.
type CameraConfig struct {
	capture.CameraConfig `yaml:",inline"`
	MotionThreshold      float64       `yaml:"motion_threshold"`
	StillHold            time.Duration `yaml:"still_hold"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path, fills unset fields with defaults and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = DefaultDataDir()
	}
	if c.Store.DB == "" {
		c.Store.DB = filepath.Join(c.Store.DataDir, "mudra.db")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	def := compare.DefaultCalibration()
	if c.Scoring.HandSensitivity <= 0 {
		c.Scoring.HandSensitivity = def.HandSensitivity
	}
	if c.Scoring.BodySensitivity <= 0 {
		c.Scoring.BodySensitivity = def.BodySensitivity
	}
	if c.Scoring.MinCosineJoints <= 0 {
		c.Scoring.MinCosineJoints = def.MinCosineJoints
	}
	if c.Scoring.ToleranceDegrees <= 0 {
		c.Scoring.ToleranceDegrees = def.ToleranceDegrees
	}
	if c.Scoring.FingerSpreadDegrees <= 0 {
		c.Scoring.FingerSpreadDegrees = def.FingerSpreadDegrees
	}

	if c.Session.TickRate <= 0 {
		c.Session.TickRate = 30
	}
	if c.Session.FeedbackThreshold <= 0 {
		c.Session.FeedbackThreshold = 15
	}
	if c.Session.FeedbackTimeout <= 0 {
		c.Session.FeedbackTimeout = 5 * time.Second
	}

	if c.Coach.Provider == "" {
		c.Coach.Provider = ProviderFallback
	}
	if c.Coach.PluginDir == "" {
		c.Coach.PluginDir = filepath.Join(c.Store.DataDir, "plugins")
	}
	if c.Coach.Timeout <= 0 {
		c.Coach.Timeout = 5 * time.Second
	}
	if c.Coach.CacheTTL <= 0 {
		c.Coach.CacheTTL = 5 * time.Minute
	}
	if c.Coach.CacheSize <= 0 {
		c.Coach.CacheSize = 100
	}
	if c.Coach.Limits == (coach.Limits{}) {
		c.Coach.Limits = coach.DefaultLimits()
	}

	ddef := detector.DefaultConfig()
	if c.Detector.MaxHands <= 0 {
		c.Detector.MaxHands = ddef.MaxHands
	}
	if c.Detector.MinConfidence <= 0 {
		c.Detector.MinConfidence = ddef.MinConfidence
	}
	if c.Detector.MinTrackingConf <= 0 {
		c.Detector.MinTrackingConf = ddef.MinTrackingConf
	}

	cdef := capture.DefaultCameraConfig()
	if c.Camera.Width <= 0 {
		c.Camera.Width = cdef.Width
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = cdef.Height
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = cdef.FPS
	}
	if c.Camera.MotionThreshold <= 0 {
		c.Camera.MotionThreshold = capture.DefaultMotionThreshold
	}
	if c.Camera.StillHold <= 0 {
		c.Camera.StillHold = capture.DefaultStillHold
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MUDRA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MUDRA_DB"); v != "" {
		c.Store.DB = v
	}
	if v := os.Getenv("MUDRA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Coach.Provider {
	case ProviderFallback:
	case ProviderHTTP:
		if c.Coach.URL == "" {
			return errors.New("coach: http provider needs a url")
		}
	case ProviderPlugin:
		if c.Coach.Plugin == "" {
			return errors.New("coach: plugin provider needs a plugin name")
		}
	default:
		return fmt.Errorf("coach: unknown provider %q", c.Coach.Provider)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Scoring.HandSensitivity > 100 || c.Scoring.BodySensitivity > 100 {
		return errors.New("scoring: sensitivity above 100 points per degree")
	}
	return nil
}

// DefaultDataDir returns ~/.mudra, or .mudra when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// NewLogger builds the slog logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log: unknown level %q", s)
}
