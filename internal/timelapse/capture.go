package timelapse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"plantcam/internal/fileutil"
	"plantcam/internal/logging"
)

// CaptureNow takes a full-resolution frame immediately, sharing the camera
// mutex with the scheduled loops. The frame joins the current session unless
// an encode is snapshotting concurrently, in which case it seeds the next
// session.
func (e *Engine) CaptureNow(ctx context.Context) error {
	return e.captureFrame(ctx)
}

func (e *Engine) captureFrame(ctx context.Context) error {
	capturedAt := e.now()
	path := filepath.Join(e.cfg.FramesDir(), frameName(capturedAt))

	e.cameraMu.Lock()
	err := e.camera.Capture(ctx, path)
	e.cameraMu.Unlock()
	if err != nil {
		e.recordCaptureError(ctx, fmt.Sprintf("capture: %v", err))
		return err
	}

	kept, err := e.postProcess(ctx, path)
	if err != nil {
		// Disk and session must agree; a half-processed frame is removed
		// rather than left to poison the next encode.
		_ = fileutil.RemoveIfExists(path)
		e.recordCaptureError(ctx, fmt.Sprintf("post-process: %v", err))
		return err
	}
	if !kept {
		e.logger.Info("discarded black frame", logging.String("frame", filepath.Base(path)))
		return nil
	}

	e.mu.Lock()
	if !e.session.contains(path) {
		e.session.append(Frame{Path: path, CapturedAt: capturedAt})
	}
	frameCount := len(e.session.frames)
	sessionID := e.session.id
	e.lastCaptureAt = capturedAt
	e.lastCaptureError = ""
	e.mu.Unlock()

	e.logger.Info("captured frame",
		logging.String("frame", filepath.Base(path)),
		logging.String("session_id", sessionID),
		logging.Int("frame_count", frameCount),
	)
	return nil
}

// postProcess rotates, normalizes and black-screens the frame. Returns
// kept=false when the frame was discarded as black.
func (e *Engine) postProcess(ctx context.Context, path string) (kept bool, err error) {
	settings := e.Settings()

	for turns := settings.RotationDegrees / 90; turns > 0; turns-- {
		if err := e.processor.RotateLeft(ctx, path); err != nil {
			return false, err
		}
	}
	if err := e.processor.NormalizeFullHD(ctx, path); err != nil {
		return false, err
	}

	if settings.BlackDetectionPercentage < 100 {
		if ratio, ok := e.processor.EstimateBlackRatio(ctx, path); ok {
			if ratio*100 >= settings.BlackDetectionPercentage {
				if err := fileutil.RemoveIfExists(path); err != nil {
					return false, err
				}
				return false, nil
			}
		}
	}
	return true, nil
}

// refreshLiveView overwrites the fixed live-view snapshot. The encode
// pipeline never touches this file, and it skips post-processing entirely.
// Failures are recorded like capture failures so the dashboard shows a stale
// live view for what it is.
func (e *Engine) refreshLiveView(ctx context.Context) error {
	e.cameraMu.Lock()
	err := e.camera.Capture(ctx, e.cfg.LiveViewPath())
	e.cameraMu.Unlock()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.mu.Lock()
			e.lastLiveViewError = fmt.Sprintf("live view: %v", err)
			e.lastLiveViewErrorAt = e.now()
			e.mu.Unlock()
		}
		return err
	}

	e.mu.Lock()
	e.lastLiveViewAt = e.now()
	e.lastLiveViewError = ""
	e.mu.Unlock()
	return nil
}

func (e *Engine) recordCaptureError(ctx context.Context, detail string) {
	at := e.now()

	e.mu.Lock()
	firstFailure := e.lastCaptureError == ""
	e.lastCaptureError = detail
	e.lastCaptureErrorAt = at
	e.mu.Unlock()

	if e.recorder != nil {
		if err := e.recorder.RecordFailure(ctx, "capture", detail); err != nil {
			e.logger.Warn("failed to journal capture error", logging.Error(err))
		}
	}
	if e.notifier != nil && firstFailure {
		e.notifier.CaptureFailing(ctx, detail)
	}
}
