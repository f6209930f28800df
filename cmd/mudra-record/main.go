// Command mudra-record extracts a target sign timeline from a reference
// video and stores it for practice.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/recorder"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
)

func main() {
	configPath := flag.String("config", "", "path to mudra.yaml (default ~/.mudra/mudra.yaml)")
	videoPath := flag.String("video", "", "reference video of the sign")
	sign := flag.String("sign", "", "sign name")
	outDir := flag.String("out", "", "also write <sign>_landmarks.json into this directory")
	flag.Parse()

	if *videoPath == "" || *sign == "" {
		fmt.Fprintln(os.Stderr, "usage: mudra-record -video <file> -sign <name> [-config file] [-out dir]")
		os.Exit(2)
	}

	if *configPath == "" {
		*configPath = filepath.Join(config.DefaultDataDir(), "mudra.yaml")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := record(ctx, cfg, *videoPath, *sign, *outDir, logger); err != nil {
		logger.Error("recording failed", "video", *videoPath, "sign", *sign, "error", err)
		os.Exit(1)
	}
}

func record(ctx context.Context, cfg *config.Config, videoPath, sign, outDir string, logger *slog.Logger) error {
	if err := recorder.CheckFile(videoPath); err != nil {
		return err
	}

	det, err := detector.NewMediaPipeDetector(cfg.Detector, logger)
	if err != nil {
		return fmt.Errorf("landmark detector: %w", err)
	}
	defer det.Close()

	tl, err := recorder.New(det, logger).Record(ctx, videoPath, sign)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	saved, err := st.Signs().Put(tl)
	if err != nil {
		return fmt.Errorf("store sign: %w", err)
	}

	if outDir != "" {
		if err := (timeline.FileLoader{Dir: outDir}).Save(tl); err != nil {
			return err
		}
	}

	logger.Info("sign recorded", "sign", saved.Name, "frames", saved.FrameCount,
		"duration", saved.Duration, "frame_rate", saved.FrameRate)
	return nil
}
