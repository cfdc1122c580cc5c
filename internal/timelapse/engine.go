package timelapse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"plantcam/internal/config"
	"plantcam/internal/logging"
	"plantcam/internal/services/camera"
)

// Encoder turns an ordered frame list into a video artifact.
type Encoder interface {
	EncodeTimelapse(ctx context.Context, frames []string, output string, fps int, codec string) error
}

// FrameProcessor applies post-capture transforms to a frame in place.
type FrameProcessor interface {
	RotateLeft(ctx context.Context, imagePath string) error
	NormalizeFullHD(ctx context.Context, imagePath string) error
	EstimateBlackRatio(ctx context.Context, imagePath string) (ratio float64, ok bool)
}

// Recorder journals completed encodes and notable failures. The journal is
// advisory; the engine never reads it back.
type Recorder interface {
	RecordEncode(ctx context.Context, sessionID string, startedAt, finishedAt time.Time, frameCount int, artifact string) error
	RecordFailure(ctx context.Context, operation, detail string) error
}

// Notifier publishes operator-facing events. Implementations must be safe
// for concurrent use.
type Notifier interface {
	EncodeCompleted(ctx context.Context, artifact string, frameCount int)
	EncodeFailed(ctx context.Context, detail string)
	CaptureFailing(ctx context.Context, detail string)
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithRecorder attaches a history journal.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithNotifier attaches an event notifier.
func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithThresholdPoll overrides the threshold poll cadence (tests).
func WithThresholdPoll(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.thresholdPoll = interval
		}
	}
}

// Engine owns the session state and the capture/encode loops.
type Engine struct {
	cfg       *config.Config
	camera    camera.Client
	encoder   Encoder
	processor FrameProcessor
	recorder  Recorder
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	// mu guards session, settings and the status fields. cameraMu serializes
	// camera hardware access between the two capture loops and CaptureNow.
	// encodeMu is held for the duration of an encode; TryLock makes a second
	// trigger a cheap no-op.
	mu       sync.Mutex
	cameraMu sync.Mutex
	encodeMu sync.Mutex

	session       session
	settings      Settings
	thresholdPoll time.Duration

	lastCaptureAt       time.Time
	nextCaptureAt       time.Time
	lastCaptureError    string
	lastCaptureErrorAt  time.Time
	lastLiveViewAt      time.Time
	lastLiveViewError   string
	lastLiveViewErrorAt time.Time
	lastEncodeArtifact  string
	lastEncodeAt        time.Time
	lastEncodeError     string
	lastEncodeErrorAt   time.Time
	encoding            bool

	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// runContext returns the engine's lifetime context so background encodes
// outlive the request that triggered them but still stop with the engine.
func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

// New constructs an engine and rebuilds the session from the frames
// directory.
func New(cfg *config.Config, cam camera.Client, encoder Encoder, processor FrameProcessor, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		cfg:       cfg,
		camera:    cam,
		encoder:   encoder,
		processor: processor,
		logger:    logging.WithComponent(logger, "timelapse"),
		now:       time.Now,
		session:   newSession(),
		settings:  loadSettings(cfg),

		thresholdPoll: thresholdPollInterval,
	}
	for _, opt := range opts {
		opt(engine)
	}

	frames, err := scanFrames(cfg.FramesDir())
	if err != nil {
		return nil, err
	}
	for _, frame := range frames {
		engine.session.append(frame)
	}
	if len(frames) > 0 {
		engine.logger.Info("recovered session from disk",
			logging.String("session_id", engine.session.id),
			logging.Int("frame_count", len(frames)),
			logging.Time("started_at", engine.session.startedAt),
		)
	}
	return engine, nil
}

// Settings returns a copy of the current runtime settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings validates, applies and persists new runtime settings. The
// capture scheduler picks the new interval up on its next tick.
func (e *Engine) UpdateSettings(settings Settings) error {
	if err := settings.validate(); err != nil {
		return err
	}
	if err := saveSettings(e.cfg, settings); err != nil {
		return err
	}

	e.mu.Lock()
	previous := e.settings
	e.settings = settings
	if settings.CaptureIntervalSeconds != previous.CaptureIntervalSeconds && !e.lastCaptureAt.IsZero() {
		e.nextCaptureAt = e.lastCaptureAt.Add(settings.captureInterval())
	}
	e.mu.Unlock()

	e.logger.Info("runtime settings updated",
		logging.Int("capture_interval_seconds", settings.CaptureIntervalSeconds),
		logging.Int("rotation_degrees", settings.RotationDegrees),
		logging.Int("frame_threshold", settings.FrameThreshold),
		logging.Float64("black_detection_percentage", settings.BlackDetectionPercentage),
	)
	return nil
}
