package daemon

import (
	"context"

	"log/slog"

	"plantcam/internal/logging"
	"plantcam/internal/notifications"
	"plantcam/internal/timelapse"
)

// engineNotifier adapts the notification service to the engine's surface.
// Delivery failures are logged, never propagated; a dead ntfy topic must not
// affect capture or encode behaviour.
type engineNotifier struct {
	svc    notifications.Service
	logger *slog.Logger
}

// NewEngineNotifier wraps the notification service for engine use.
func NewEngineNotifier(svc notifications.Service, logger *slog.Logger) timelapse.Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &engineNotifier{svc: svc, logger: logging.WithComponent(logger, "notifications")}
}

func (n *engineNotifier) EncodeCompleted(ctx context.Context, artifact string, frameCount int) {
	if err := n.svc.NotifyEncodeCompleted(ctx, artifact, frameCount); err != nil {
		n.logger.Warn("encode notification failed", logging.Error(err))
	}
}

func (n *engineNotifier) EncodeFailed(ctx context.Context, detail string) {
	if err := n.svc.NotifyEncodeFailed(ctx, detail); err != nil {
		n.logger.Warn("encode failure notification failed", logging.Error(err))
	}
}

func (n *engineNotifier) CaptureFailing(ctx context.Context, detail string) {
	if err := n.svc.NotifyCaptureFailing(ctx, detail); err != nil {
		n.logger.Warn("capture failure notification failed", logging.Error(err))
	}
}
