package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeSession()
	c.normalizeUpdater()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("PLANTCAM_MEDIA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.MediaDir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.WebBind = strings.TrimSpace(c.Paths.WebBind)
	if c.Paths.WebBind == "" {
		c.Paths.WebBind = defaultWebBind
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Binary = strings.TrimSpace(c.Capture.Binary)
	if c.Capture.Binary == "" {
		c.Capture.Binary = defaultCaptureBinary
	}
	if c.Capture.IntervalSeconds <= 0 {
		c.Capture.IntervalSeconds = defaultCaptureIntervalSeconds
	}
	if c.Capture.LiveViewIntervalSeconds <= 0 {
		c.Capture.LiveViewIntervalSeconds = defaultLiveViewIntervalSeconds
	}
}

func (c *Config) normalizeSession() {
	if c.Session.FrameThreshold <= 0 {
		c.Session.FrameThreshold = defaultFrameThreshold
	}
	if c.Session.FPS <= 0 {
		c.Session.FPS = defaultFPS
	}
	c.Session.Codec = strings.TrimSpace(c.Session.Codec)
	if c.Session.Codec == "" {
		c.Session.Codec = defaultCodec
	}
}

func (c *Config) normalizeUpdater() {
	c.Updater.Remote = strings.TrimSpace(c.Updater.Remote)
	if c.Updater.Remote == "" {
		c.Updater.Remote = defaultUpdateRemote
	}
	c.Updater.Branch = strings.TrimSpace(c.Updater.Branch)
	if c.Updater.Branch == "" {
		c.Updater.Branch = defaultUpdateBranch
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PLANTCAM_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
