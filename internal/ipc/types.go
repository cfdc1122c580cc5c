package ipc

import "plantcam/internal/api"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the combined status document.
type StatusResponse struct {
	Status api.Status `json:"status"`
}

// CaptureNowRequest takes a frame immediately.
type CaptureNowRequest struct{}

// CaptureNowResponse reports capture outcome.
type CaptureNowResponse struct {
	Captured bool   `json:"captured"`
	Message  string `json:"message"`
}

// ConvertNowRequest triggers an encode of the current session.
type ConvertNowRequest struct{}

// ConvertNowResponse reports whether the encode started.
type ConvertNowResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// MergeVideosRequest merges the whole catalog into one video.
type MergeVideosRequest struct{}

// MergeVideosResponse names the merged artifact.
type MergeVideosResponse struct {
	Merged api.Video `json:"merged"`
}

// ListVideosRequest lists the catalog.
type ListVideosRequest struct{}

// ListVideosResponse contains catalog entries, newest first.
type ListVideosResponse struct {
	Videos []api.Video `json:"videos"`
}

// DeleteVideoRequest removes one video by name.
type DeleteVideoRequest struct {
	Name string `json:"name"`
}

// DeleteVideoResponse reports delete outcome.
type DeleteVideoResponse struct {
	Deleted bool `json:"deleted"`
}

// HistoryRequest fetches recent journal events.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains journal events, newest first.
type HistoryResponse struct {
	Events []api.HistoryEvent `json:"events"`
}

// UpdateSettingsRequest applies new runtime settings.
type UpdateSettingsRequest struct {
	Settings api.Settings `json:"settings"`
}

// UpdateSettingsResponse reports the applied settings.
type UpdateSettingsResponse struct {
	Settings api.Settings `json:"settings"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
