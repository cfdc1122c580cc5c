package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"plantcam/internal/config"
)

const userAgent = "Plantcam/1.0"

// Service defines the notification surface exposed to the engine, updater
// and control surfaces.
type Service interface {
	NotifyEncodeCompleted(ctx context.Context, artifact string, frameCount int) error
	NotifyEncodeFailed(ctx context.Context, detail string) error
	NotifyCaptureFailing(ctx context.Context, detail string) error
	NotifyUpdateApplied(ctx context.Context, branch string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyEncodeCompleted(ctx context.Context, artifact string, frameCount int) error {
	data := payload{
		title:   "Plantcam - Timelapse Ready",
		message: fmt.Sprintf("Encoded %d frames into %s", frameCount, filepath.Base(artifact)),
		tags:    []string{"plantcam", "encode", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEncodeFailed(ctx context.Context, detail string) error {
	data := payload{
		title:    "Plantcam - Encode Failed",
		message:  fmt.Sprintf("Encode failed, frames retained: %s", strings.TrimSpace(detail)),
		tags:     []string{"plantcam", "encode", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaptureFailing(ctx context.Context, detail string) error {
	data := payload{
		title:    "Plantcam - Capture Failing",
		message:  fmt.Sprintf("Camera capture is failing: %s", strings.TrimSpace(detail)),
		tags:     []string{"plantcam", "capture", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUpdateApplied(ctx context.Context, branch string) error {
	data := payload{
		title:   "Plantcam - Updated",
		message: fmt.Sprintf("Update applied on branch %s, restarting", strings.TrimSpace(branch)),
		tags:    []string{"plantcam", "update", "applied"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Plantcam - Test",
		message:  "Notification system test",
		tags:     []string{"plantcam", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEncodeCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifyEncodeFailed(context.Context, string) error         { return nil }
func (noopService) NotifyCaptureFailing(context.Context, string) error       { return nil }
func (noopService) NotifyUpdateApplied(context.Context, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
