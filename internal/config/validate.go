package config

import (
	"errors"
	"fmt"
)

var validRotations = map[int]struct{}{0: {}, 90: {}, 180: {}, 270: {}}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.interval_seconds":           c.Capture.IntervalSeconds,
		"capture.live_view_interval_seconds": c.Capture.LiveViewIntervalSeconds,
	}); err != nil {
		return err
	}
	if _, ok := validRotations[c.Capture.RotationDegrees]; !ok {
		return errors.New("capture.rotation_degrees must be one of 0, 90, 180, 270")
	}
	if c.Capture.BlackDetectionPercentage < 0 || c.Capture.BlackDetectionPercentage > 100 {
		return errors.New("capture.black_detection_percentage must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateSession() error {
	return ensurePositiveMap(map[string]int{
		"session.frame_threshold": c.Session.FrameThreshold,
		"session.fps":             c.Session.FPS,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
