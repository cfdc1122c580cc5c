package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"log/slog"

	"plantcam/internal/config"
	"plantcam/internal/daemon"
	"plantcam/internal/logging"
	"plantcam/internal/media"
	"plantcam/internal/notifications"
	"plantcam/internal/services/camera"
	"plantcam/internal/services/ffmpeg"
	"plantcam/internal/store"
	"plantcam/internal/timelapse"
	"plantcam/internal/updater"
)

const recentLogLines = 200

func buildLogger(cfg *config.Config) (*slog.Logger, *logging.RingHandler, error) {
	handler, err := logging.NewHandler(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFilePath()},
	})
	if err != nil {
		return nil, nil, err
	}
	ring := logging.NewRingHandler(recentLogLines, slog.LevelInfo)
	return slog.New(logging.Fanout(handler, ring)), ring, nil
}

func buildDependencies(cfg *config.Config, logger *slog.Logger, ring *logging.RingHandler, testMode bool) (daemon.Deps, *store.Store, error) {
	ffmpegClient, err := ffmpeg.New(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	if err != nil {
		return daemon.Deps{}, nil, fmt.Errorf("ffmpeg client: %w", err)
	}

	cam, processor, err := buildCamera(cfg, ffmpegClient, testMode)
	if err != nil {
		return daemon.Deps{}, nil, err
	}

	if codec := ffmpegClient.ResolveCodec(context.Background(), cfg.Session.Codec); codec != cfg.Session.Codec {
		logger.Warn("configured codec unavailable, falling back",
			logging.String("configured", cfg.Session.Codec),
			logging.String("fallback", codec),
		)
		cfg.Session.Codec = codec
	}

	journal, err := store.Open(cfg)
	if err != nil {
		return daemon.Deps{}, nil, fmt.Errorf("open history store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	engine, err := timelapse.New(cfg, cam, ffmpegClient, processor, logger,
		timelapse.WithRecorder(journal),
		timelapse.WithNotifier(daemon.NewEngineNotifier(notifier, logger)),
	)
	if err != nil {
		_ = journal.Close()
		return daemon.Deps{}, nil, fmt.Errorf("timelapse engine: %w", err)
	}

	deps := daemon.Deps{
		Engine:   engine,
		Catalog:  media.NewCatalog(cfg, ffmpegClient),
		Journal:  journal,
		Updater:  buildUpdater(cfg, logger),
		Notifier: notifier,
		Recent:   ring,
	}
	return deps, journal, nil
}

func buildCamera(cfg *config.Config, processor timelapse.FrameProcessor, testMode bool) (camera.Client, timelapse.FrameProcessor, error) {
	if testMode {
		sim := camera.NewSimulator()
		return sim, simulatorProcessor{sim: sim}, nil
	}
	cam, err := camera.NewCLI(cfg.Capture.Binary)
	if err != nil {
		return nil, nil, fmt.Errorf("camera client: %w", err)
	}
	return cam, processor, nil
}

// buildUpdater enables self-update only when the daemon runs from a git
// checkout; installs without one simply lose the update button.
func buildUpdater(cfg *config.Config, logger *slog.Logger) *updater.Updater {
	root, ok := findRepoRoot()
	if !ok {
		logger.Info("no git checkout found, self-update disabled")
		return nil
	}
	return updater.New(root, cfg.GitBinary(), cfg.Updater.Remote, cfg.Updater.Branch, logger)
}

func findRepoRoot() (string, bool) {
	executable, err := os.Executable()
	if err != nil {
		return "", false
	}
	dir := filepath.Dir(executable)
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// simulatorProcessor skips the ffmpeg transforms in test mode; the simulated
// payloads are not decodable images. The black ratio comes from the simulator
// so black-frame discarding stays exercisable.
type simulatorProcessor struct {
	sim *camera.Simulator
}

func (simulatorProcessor) RotateLeft(context.Context, string) error      { return nil }
func (simulatorProcessor) NormalizeFullHD(context.Context, string) error { return nil }

func (p simulatorProcessor) EstimateBlackRatio(_ context.Context, imagePath string) (float64, bool) {
	return p.sim.BlackRatio(imagePath)
}
