package main

import (
	"context"
	"path/filepath"
	"testing"

	"plantcam/internal/config"
	"plantcam/internal/services/camera"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.MediaDir = filepath.Join(dir, "media")
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return &cfg
}

func TestBuildDependenciesInTestMode(t *testing.T) {
	cfg := testConfig(t)
	logger, ring, err := buildLogger(cfg)
	if err != nil {
		t.Fatalf("buildLogger failed: %v", err)
	}

	deps, journal, err := buildDependencies(cfg, logger, ring, true)
	if err != nil {
		t.Fatalf("buildDependencies failed: %v", err)
	}
	defer journal.Close()

	if deps.Engine == nil || deps.Catalog == nil || deps.Journal == nil {
		t.Fatalf("expected engine, catalog and journal wired, got %+v", deps)
	}
	if deps.Notifier == nil || deps.Recent == nil {
		t.Fatal("expected notifier and recent-log ring wired")
	}
}

func TestBuildCameraTestModeUsesSimulator(t *testing.T) {
	cfg := testConfig(t)

	cam, processor, err := buildCamera(cfg, nil, true)
	if err != nil {
		t.Fatalf("buildCamera failed: %v", err)
	}
	sim, ok := cam.(*camera.Simulator)
	if !ok {
		t.Fatalf("expected simulator client, got %T", cam)
	}

	sim.SetBlackRatio(0.95)
	frame := filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")
	if err := sim.Capture(context.Background(), frame); err != nil {
		t.Fatalf("simulated capture failed: %v", err)
	}

	ratio, ok := processor.EstimateBlackRatio(context.Background(), frame)
	if !ok || ratio != 0.95 {
		t.Fatalf("expected simulator ratio 0.95, got %v ok=%v", ratio, ok)
	}
	if _, ok := processor.EstimateBlackRatio(context.Background(), "unknown.jpg"); ok {
		t.Fatal("expected unknown frame to report no ratio")
	}
}

func TestBuildLoggerRejectsBadFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Format = "yaml"
	if _, _, err := buildLogger(cfg); err == nil {
		t.Fatal("expected unsupported log format to be rejected")
	}
}
