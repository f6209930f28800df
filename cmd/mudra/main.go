package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to mudra.yaml (default ~/.mudra/mudra.yaml)")
	practice := flag.String("practice", "", "practice a sign with the local camera")
	noTray := flag.Bool("no-tray", false, "do not show the system tray in practice mode")
	flag.Parse()

	if *configPath == "" {
		*configPath = filepath.Join(config.DefaultDataDir(), "mudra.yaml")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, *practice, *noTray, logger); err != nil {
		logger.Error("mudra failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, practice string, noTray bool, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.Store.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	coachSvc, err := newCoach(cfg, logger)
	if err != nil {
		return err
	}

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.Store.DataDir)
	}
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}

	srvCfg := server.Config{
		StaticDir:         webDir,
		Store:             st,
		Coach:             coachSvc,
		Calibration:       cfg.Scoring,
		FeedbackThreshold: cfg.Session.FeedbackThreshold,
		FeedbackTimeout:   cfg.Session.FeedbackTimeout,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Logger:            logger,
	}

	if practice == "" {
		logger.Info("starting server", "addr", cfg.Server.Addr, "coach", coachSvc.ProviderName())
		return server.New(srvCfg).Run(ctx, cfg.Server.Addr)
	}

	preview := capture.NewPreview()
	srvCfg.Preview = preview
	go func() {
		if err := server.New(srvCfg).Run(ctx, cfg.Server.Addr); err != nil {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	return runPractice(ctx, stop, cfg, st, coachSvc, preview, practice, noTray, logger)
}

// runPractice drives camera practice of sign until the run ends or ctx is
// cancelled. With a tray it must run on the main goroutine.
func runPractice(ctx context.Context, stop context.CancelFunc, cfg *config.Config, st *store.Store, coachSvc *coach.Service,
	preview *capture.Preview, sign string, noTray bool, logger *slog.Logger) error {

	det, err := detector.NewMediaPipeDetector(cfg.Detector, logger)
	if err != nil {
		return fmt.Errorf("landmark detector: %w", err)
	}

	var t *tray.Tray
	if !noTray {
		t = tray.New(sign)
	}

	a := app.New(app.Config{
		Store:             st,
		Camera:            capture.NewCamera(cfg.Camera.CameraConfig),
		Detector:          det,
		Coach:             coachSvc,
		Calibration:       cfg.Scoring,
		MotionThreshold:   cfg.Camera.MotionThreshold,
		StillHold:         cfg.Camera.StillHold,
		FeedbackThreshold: cfg.Session.FeedbackThreshold,
		FeedbackTimeout:   cfg.Session.FeedbackTimeout,
		Preview:           preview,
		Logger:            logger,
		OnUpdate: func(u session.Update) {
			if t != nil {
				t.Update(u)
			}
		},
	})
	defer a.Close()

	if err := a.Start(ctx, sign); err != nil {
		return fmt.Errorf("start practice: %w", err)
	}
	logger.Info("practicing", "sign", sign, "preview", "http://"+localAddr(cfg.Server.Addr)+"/api/stream")

	if t == nil {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
		a.Stop()
		return nil
	}

	t.OnToggle(a.SetEnabled)
	t.OnOpen(func() {
		fmt.Printf("Open http://%s in your browser\n", localAddr(cfg.Server.Addr))
	})
	t.OnQuit(stop)

	go func() {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
		a.Stop()
		t.Quit()
	}()
	t.Run()

	a.Stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("practice stopped")
	}
	return nil
}

// newCoach builds the coaching service for the configured provider.
func newCoach(cfg *config.Config, logger *slog.Logger) (*coach.Service, error) {
	cc := coach.Config{
		Timeout:   cfg.Coach.Timeout,
		CacheTTL:  cfg.Coach.CacheTTL,
		CacheSize: cfg.Coach.CacheSize,
		Limits:    cfg.Coach.Limits,
		Logger:    logger,
	}

	switch cfg.Coach.Provider {
	case config.ProviderHTTP:
		cc.Provider = coach.NewHTTPProvider(cfg.Coach.URL, cfg.Coach.Timeout)
	case config.ProviderPlugin:
		manager := plugin.NewManager(cfg.Coach.PluginDir, logger)
		if err := manager.Discover(); err != nil {
			return nil, fmt.Errorf("discover plugins: %w", err)
		}
		if _, err := manager.Get(cfg.Coach.Plugin); err != nil {
			return nil, fmt.Errorf("coaching plugin %q: %w", cfg.Coach.Plugin, err)
		}
		cc.Provider = coach.NewPluginProvider(manager, plugin.NewExecutor(cfg.Coach.Timeout), cfg.Coach.Plugin)
	}

	return coach.New(cc), nil
}

// localAddr turns a listen address like ":8080" into a dialable one.
func localAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
