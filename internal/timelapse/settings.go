package timelapse

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"plantcam/internal/config"
	"plantcam/internal/fileutil"
)

// Settings are the knobs adjustable at runtime without a daemon restart.
// They start from the config file and persist to runtime.json in the media
// dir, so operator adjustments survive restarts alongside the frames.
type Settings struct {
	CaptureIntervalSeconds   int     `json:"capture_interval_seconds"`
	RotationDegrees          int     `json:"rotation_degrees"`
	FrameThreshold           int     `json:"frame_threshold"`
	BlackDetectionPercentage float64 `json:"black_detection_percentage"`
}

func settingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		CaptureIntervalSeconds:   cfg.Capture.IntervalSeconds,
		RotationDegrees:          cfg.Capture.RotationDegrees,
		FrameThreshold:           cfg.Session.FrameThreshold,
		BlackDetectionPercentage: cfg.Capture.BlackDetectionPercentage,
	}
}

func (s Settings) validate() error {
	if s.CaptureIntervalSeconds <= 0 {
		return fmt.Errorf("capture interval must be positive, got %d", s.CaptureIntervalSeconds)
	}
	switch s.RotationDegrees {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", s.RotationDegrees)
	}
	if s.FrameThreshold <= 0 {
		return fmt.Errorf("frame threshold must be positive, got %d", s.FrameThreshold)
	}
	if s.BlackDetectionPercentage < 0 || s.BlackDetectionPercentage > 100 {
		return fmt.Errorf("black detection percentage must be within 0-100, got %g", s.BlackDetectionPercentage)
	}
	return nil
}

func (s Settings) captureInterval() time.Duration {
	return time.Duration(s.CaptureIntervalSeconds) * time.Second
}

// loadSettings overlays persisted runtime values on the config defaults. A
// missing or unreadable runtime file falls back to config; a half-written
// file must never brick the daemon.
func loadSettings(cfg *config.Config) Settings {
	settings := settingsFromConfig(cfg)

	data, err := os.ReadFile(cfg.RuntimeConfigPath())
	if err != nil {
		return settings
	}
	var persisted Settings
	if err := json.Unmarshal(data, &persisted); err != nil {
		return settings
	}
	if persisted.validate() != nil {
		return settings
	}
	return persisted
}

func saveSettings(cfg *config.Config, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(cfg.RuntimeConfigPath(), append(data, '\n'), 0o644)
}
