package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"plantcam/internal/api"
	"plantcam/internal/config"
	"plantcam/internal/logging"
	"plantcam/internal/media"
	"plantcam/internal/notifications"
	"plantcam/internal/store"
	"plantcam/internal/timelapse"
	"plantcam/internal/updater"
)

// Deps bundles the collaborators the daemon coordinates.
type Deps struct {
	Engine   *timelapse.Engine
	Catalog  *media.Catalog
	Journal  *store.Store
	Updater  *updater.Updater
	Notifier notifications.Service
	Recent   *logging.RingHandler
}

// Daemon owns the engine, web dashboard and updater, and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *timelapse.Engine
	catalog  *media.Catalog
	journal  *store.Store
	updater  *updater.Updater
	notifier notifications.Service
	recent   *logging.RingHandler

	lockPath string
	lock     *flock.Flock
	web      *webServer

	running  atomic.Bool
	updating atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Engine == nil || deps.Catalog == nil {
		return nil, errors.New("daemon requires config, engine and catalog")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		journal:  deps.Journal,
		updater:  deps.Updater,
		notifier: notifier,
		recent:   deps.Recent,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.web = newWebServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the engine and dashboard.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another plantcam daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.engine.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start engine: %w", err)
	}
	if err := d.web.start(d.ctx); err != nil {
		d.engine.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start web server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("plantcam daemon started",
		logging.String("lock", d.lockPath),
		logging.String("web_bind", d.cfg.Paths.WebBind),
	)
	return nil
}

// Stop stops the dashboard and engine and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.web.stop()
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("plantcam daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Status assembles the combined status document.
func (d *Daemon) Status(ctx context.Context) api.Status {
	status := api.FromEngineStatus(d.engine.GetStatus())
	status.Running = d.running.Load()
	status.PID = os.Getpid()
	status.LockPath = d.lockPath
	status.SocketPath = d.cfg.SocketPath()

	if d.updater != nil {
		repoCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if repo, err := d.updater.Status(repoCtx); err == nil {
			status.Repo = &api.RepoStatus{Branch: repo.Branch, LastCommitDate: repo.LastCommitDate}
		}
	}
	return status
}

// CaptureNow takes a frame immediately.
func (d *Daemon) CaptureNow(ctx context.Context) error {
	return d.engine.CaptureNow(ctx)
}

// ConvertNow triggers an encode of the current session.
func (d *Daemon) ConvertNow() timelapse.ConvertResult {
	return d.engine.ConvertNow()
}

// MergeNow merges all videos into one artifact.
func (d *Daemon) MergeNow(ctx context.Context) (api.Video, error) {
	item, err := d.catalog.MergeAll(ctx)
	if err != nil {
		return api.Video{}, err
	}
	return api.FromMediaItem(item), nil
}

// Videos lists the catalog, newest first.
func (d *Daemon) Videos() ([]api.Video, error) {
	items, err := d.catalog.ListVideos()
	if err != nil {
		return nil, err
	}
	videos := make([]api.Video, 0, len(items))
	for _, item := range items {
		videos = append(videos, api.FromMediaItem(item))
	}
	return videos, nil
}

// DeleteVideo removes a video artifact by validated name.
func (d *Daemon) DeleteVideo(name string) error {
	return d.catalog.DeleteVideo(name)
}

// History returns the newest journal events.
func (d *Daemon) History(ctx context.Context, limit int) ([]api.HistoryEvent, error) {
	if d.journal == nil {
		return nil, nil
	}
	events, err := d.journal.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	history := make([]api.HistoryEvent, 0, len(events))
	for _, event := range events {
		history = append(history, api.FromStoreEvent(event))
	}
	return history, nil
}

// TestNotification sends a test push.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

// UpdateSettings applies new runtime settings to the engine.
func (d *Daemon) UpdateSettings(settings api.Settings) error {
	return d.engine.UpdateSettings(timelapse.Settings{
		CaptureIntervalSeconds:   settings.CaptureIntervalSeconds,
		RotationDegrees:          settings.RotationDegrees,
		FrameThreshold:           settings.FrameThreshold,
		BlackDetectionPercentage: settings.BlackDetectionPercentage,
	})
}

// StartUpdate kicks off a git update in the background. On success the
// process restarts in place and never returns.
func (d *Daemon) StartUpdate() error {
	if d.updater == nil {
		return errors.New("updater not configured")
	}
	if !d.updating.CompareAndSwap(false, true) {
		return errors.New("update already in progress")
	}

	go func() {
		defer d.updating.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		status, err := d.updater.Update(ctx)
		if err != nil {
			d.logger.Error("update failed", logging.Error(err))
			if d.journal != nil {
				_ = d.journal.RecordFailure(ctx, "update", err.Error())
			}
			return
		}
		if err := d.notifier.NotifyUpdateApplied(ctx, status.Branch); err != nil {
			d.logger.Warn("update notification failed", logging.Error(err))
		}

		d.logger.Info("update applied, restarting", logging.String("branch", status.Branch))
		d.Stop()
		if err := d.updater.Restart(); err != nil {
			d.logger.Error("restart failed", logging.Error(err))
		}
	}()
	return nil
}

// WebAddr returns the dashboard's bound address; empty until started.
func (d *Daemon) WebAddr() string {
	if d.web == nil || d.web.listener == nil {
		return ""
	}
	return d.web.listener.Addr().String()
}

// RecentLogs returns the newest in-memory log lines for the dashboard.
func (d *Daemon) RecentLogs() []string {
	if d.recent == nil {
		return nil
	}
	return d.recent.Recent()
}
