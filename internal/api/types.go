package api

import (
	"time"

	"plantcam/internal/media"
	"plantcam/internal/store"
	"plantcam/internal/timelapse"
)

// Settings mirrors the runtime-adjustable engine knobs.
type Settings struct {
	CaptureIntervalSeconds   int     `json:"capture_interval_seconds"`
	RotationDegrees          int     `json:"rotation_degrees"`
	FrameThreshold           int     `json:"frame_threshold"`
	BlackDetectionPercentage float64 `json:"black_detection_percentage"`
}

// RepoStatus describes the deployed checkout.
type RepoStatus struct {
	Branch         string `json:"branch"`
	LastCommitDate string `json:"last_commit_date"`
}

// Status is the combined daemon/engine status document served by
// /api/status and the IPC Status call.
type Status struct {
	Running bool `json:"running"`
	PID     int  `json:"pid"`

	SessionID        string     `json:"session_id"`
	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	FrameCount       int        `json:"frame_count"`

	LastCaptureAt       *time.Time `json:"last_capture_at,omitempty"`
	NextCaptureAt       *time.Time `json:"next_capture_at,omitempty"`
	LastCaptureError    string     `json:"last_capture_error,omitempty"`
	LastCaptureErrorAt  *time.Time `json:"last_capture_error_at,omitempty"`
	LastLiveViewAt      *time.Time `json:"last_live_view_at,omitempty"`
	LastLiveViewError   string     `json:"last_live_view_error,omitempty"`
	LastLiveViewErrorAt *time.Time `json:"last_live_view_error_at,omitempty"`

	Encoding           bool       `json:"encoding"`
	LastEncodeArtifact string     `json:"last_encode_artifact,omitempty"`
	LastEncodeAt       *time.Time `json:"last_encode_at,omitempty"`
	LastEncodeError    string     `json:"last_encode_error,omitempty"`
	LastEncodeErrorAt  *time.Time `json:"last_encode_error_at,omitempty"`

	Settings Settings    `json:"settings"`
	Repo     *RepoStatus `json:"repo,omitempty"`

	LockPath   string `json:"lock_path,omitempty"`
	SocketPath string `json:"socket_path,omitempty"`
}

// Video describes one catalog artifact.
type Video struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HistoryEvent is one journal row.
type HistoryEvent struct {
	Kind       string     `json:"kind"`
	SessionID  string     `json:"session_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FrameCount int        `json:"frame_count,omitempty"`
	Artifact   string     `json:"artifact,omitempty"`
	Operation  string     `json:"operation,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FromEngineStatus converts the engine snapshot into the wire document.
func FromEngineStatus(status timelapse.Status) Status {
	return Status{
		SessionID:           status.SessionID,
		SessionStartedAt:    optionalTime(status.SessionStartedAt),
		FrameCount:          status.FrameCount,
		LastCaptureAt:       optionalTime(status.LastCaptureAt),
		NextCaptureAt:       optionalTime(status.NextCaptureAt),
		LastCaptureError:    status.LastCaptureError,
		LastCaptureErrorAt:  optionalTime(status.LastCaptureErrorAt),
		LastLiveViewAt:      optionalTime(status.LastLiveViewAt),
		LastLiveViewError:   status.LastLiveViewError,
		LastLiveViewErrorAt: optionalTime(status.LastLiveViewErrorAt),
		Encoding:            status.Encoding,
		LastEncodeArtifact:  status.LastEncodeArtifact,
		LastEncodeAt:        optionalTime(status.LastEncodeAt),
		LastEncodeError:     status.LastEncodeError,
		LastEncodeErrorAt:   optionalTime(status.LastEncodeErrorAt),
		Settings: Settings{
			CaptureIntervalSeconds:   status.Settings.CaptureIntervalSeconds,
			RotationDegrees:          status.Settings.RotationDegrees,
			FrameThreshold:           status.Settings.FrameThreshold,
			BlackDetectionPercentage: status.Settings.BlackDetectionPercentage,
		},
	}
}

// FromMediaItem converts a catalog entry.
func FromMediaItem(item media.Item) Video {
	return Video{Name: item.Name, SizeBytes: item.Size, ModifiedAt: item.ModTime}
}

// FromStoreEvent converts a journal row.
func FromStoreEvent(event store.Event) HistoryEvent {
	return HistoryEvent{
		Kind:       event.Kind,
		SessionID:  event.SessionID,
		StartedAt:  optionalTime(event.StartedAt),
		FinishedAt: optionalTime(event.FinishedAt),
		FrameCount: event.FrameCount,
		Artifact:   event.Artifact,
		Operation:  event.Operation,
		Detail:     event.Detail,
		CreatedAt:  event.CreatedAt,
	}
}

func optionalTime(at time.Time) *time.Time {
	if at.IsZero() {
		return nil
	}
	return &at
}
