package timelapse

import (
	"context"
	"errors"
	"time"

	"plantcam/internal/logging"
)

// schedulerTick is the resolution of the capture scheduler. A short tick
// against a stored due time (rather than a long timer) lets runtime interval
// changes take effect without rearming anything.
const schedulerTick = time.Second

// thresholdPollInterval is the default cadence for checking the session size
// against the encode threshold.
const thresholdPollInterval = 5 * time.Second

// Start launches the capture, live-view and threshold loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("timelapse engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel
	e.running = true
	// First capture fires immediately; an operator starting the daemon wants
	// evidence the camera works without waiting a full interval.
	e.nextCaptureAt = e.now()
	e.mu.Unlock()

	e.wg.Add(3)
	go e.captureLoop(runCtx)
	go e.liveViewLoop(runCtx)
	go e.thresholdLoop(runCtx)

	e.logger.Info("timelapse engine started",
		logging.Int("capture_interval_seconds", e.Settings().CaptureIntervalSeconds),
		logging.Int("frame_threshold", e.Settings().FrameThreshold),
	)
	return nil
}

// Stop terminates the loops and waits for in-flight work, including any
// running encode, to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	// An encode triggered just before shutdown may still hold the lock.
	e.encodeMu.Lock()
	e.encodeMu.Unlock() //nolint:staticcheck // barrier, not a critical section
}

func (e *Engine) captureLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		due := !e.now().Before(e.nextCaptureAt)
		interval := e.settings.captureInterval()
		if due {
			e.nextCaptureAt = e.now().Add(interval)
		}
		e.mu.Unlock()

		if !due {
			continue
		}
		if err := e.captureFrame(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("scheduled capture failed", logging.Error(err))
		}
	}
}

func (e *Engine) liveViewLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := time.Duration(e.cfg.Capture.LiveViewIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := e.refreshLiveView(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// Live view is cosmetic; a failed refresh keeps the previous image.
			e.logger.Warn("live view refresh failed", logging.Error(err))
		}
	}
}

func (e *Engine) thresholdLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.thresholdPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		frameCount := len(e.session.frames)
		threshold := e.settings.FrameThreshold
		e.mu.Unlock()

		if frameCount < threshold {
			continue
		}
		if result := e.convert(ctx); result == ConvertStarted {
			e.logger.Info("frame threshold reached, encoding session",
				logging.Int("frame_count", frameCount),
				logging.Int("frame_threshold", threshold),
			)
		}
	}
}
