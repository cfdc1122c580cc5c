package timelapse

import "time"

// Status is a point-in-time snapshot for the dashboard, CLI and status API.
// Taken under the state lock so FrameCount always matches the frame list.
type Status struct {
	SessionID        string
	SessionStartedAt time.Time
	FrameCount       int

	LastCaptureAt       time.Time
	NextCaptureAt       time.Time
	LastCaptureError    string
	LastCaptureErrorAt  time.Time
	LastLiveViewAt      time.Time
	LastLiveViewError   string
	LastLiveViewErrorAt time.Time

	Encoding           bool
	LastEncodeArtifact string
	LastEncodeAt       time.Time
	LastEncodeError    string
	LastEncodeErrorAt  time.Time

	Settings Settings
}

// GetStatus returns a consistent snapshot of engine state.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		SessionID:           e.session.id,
		SessionStartedAt:    e.session.startedAt,
		FrameCount:          len(e.session.frames),
		LastCaptureAt:       e.lastCaptureAt,
		NextCaptureAt:       e.nextCaptureAt,
		LastCaptureError:    e.lastCaptureError,
		LastCaptureErrorAt:  e.lastCaptureErrorAt,
		LastLiveViewAt:      e.lastLiveViewAt,
		LastLiveViewError:   e.lastLiveViewError,
		LastLiveViewErrorAt: e.lastLiveViewErrorAt,
		Encoding:            e.encoding,
		LastEncodeArtifact:  e.lastEncodeArtifact,
		LastEncodeAt:        e.lastEncodeAt,
		LastEncodeError:     e.lastEncodeError,
		LastEncodeErrorAt:   e.lastEncodeErrorAt,
		Settings:            e.settings,
	}
}
