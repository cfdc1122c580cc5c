package timelapse_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"plantcam/internal/config"
	"plantcam/internal/services/camera"
	"plantcam/internal/timelapse"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubEncoder struct {
	mu      sync.Mutex
	calls   [][]string
	outputs []string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubEncoder) EncodeTimelapse(_ context.Context, frames []string, output string, _ int, _ string) error {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), frames...))
	s.outputs = append(s.outputs, output)
	err := s.err
	block := s.block
	started := s.started
	s.mu.Unlock()

	if started != nil {
		close(started)
		s.mu.Lock()
		s.started = nil
		s.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return err
	}
	return os.WriteFile(output, make([]byte, 1024), 0o644)
}

func (s *stubEncoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubEncoder) lastCall() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func (s *stubEncoder) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type stubProcessor struct {
	mu             sync.Mutex
	rotations      int
	normalizations int
	normalizeErr   error
	ratio          float64
	ratioOK        bool
}

func (s *stubProcessor) RotateLeft(_ context.Context, _ string) error {
	s.mu.Lock()
	s.rotations++
	s.mu.Unlock()
	return nil
}

func (s *stubProcessor) NormalizeFullHD(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalizations++
	return s.normalizeErr
}

func (s *stubProcessor) EstimateBlackRatio(_ context.Context, _ string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio, s.ratioOK
}

func (s *stubProcessor) rotationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotations
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.MediaDir = filepath.Join(dir, "media")
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Capture.IntervalSeconds = 1
	cfg.Capture.LiveViewIntervalSeconds = 1
	cfg.Capture.RotationDegrees = 0
	cfg.Session.FrameThreshold = 3
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return &cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, clock *fakeClock) (*timelapse.Engine, *camera.Simulator, *stubEncoder, *stubProcessor) {
	t.Helper()
	sim := camera.NewSimulator()
	encoder := &stubEncoder{}
	processor := &stubProcessor{}
	engine, err := timelapse.New(cfg, sim, encoder, processor, nil, timelapse.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return engine, sim, encoder, processor
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCaptureNowAppendsFrameToSession(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, _, _ := newTestEngine(t, cfg, clock)

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}

	status := engine.GetStatus()
	if status.FrameCount != 1 {
		t.Fatalf("expected 1 frame, got %d", status.FrameCount)
	}
	if !status.SessionStartedAt.Equal(clock.Now()) {
		t.Fatalf("expected session started at %v, got %v", clock.Now(), status.SessionStartedAt)
	}
	framePath := filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")
	if _, err := os.Stat(framePath); err != nil {
		t.Fatalf("expected frame on disk: %v", err)
	}
}

func TestCaptureFailureRecordsErrorWithoutAdvancingSession(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, sim, _, _ := newTestEngine(t, cfg, clock)

	sim.FailNextCapture()
	if err := engine.CaptureNow(context.Background()); err == nil {
		t.Fatal("expected capture error")
	}

	status := engine.GetStatus()
	if status.FrameCount != 0 {
		t.Fatalf("expected empty session, got %d frames", status.FrameCount)
	}
	if status.LastCaptureError == "" {
		t.Fatal("expected capture error recorded")
	}
	if !status.LastCaptureErrorAt.Equal(clock.Now()) {
		t.Fatalf("expected error timestamp %v, got %v", clock.Now(), status.LastCaptureErrorAt)
	}

	// Next capture succeeds and clears the error.
	clock.Advance(time.Second)
	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("retry capture failed: %v", err)
	}
	status = engine.GetStatus()
	if status.FrameCount != 1 || status.LastCaptureError != "" {
		t.Fatalf("expected recovered session, got count=%d err=%q", status.FrameCount, status.LastCaptureError)
	}
}

func TestBlackFrameDiscardedBeforeSession(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, _, processor := newTestEngine(t, cfg, clock)
	processor.ratio = 0.95
	processor.ratioOK = true

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}

	status := engine.GetStatus()
	if status.FrameCount != 0 {
		t.Fatalf("expected black frame discarded, got %d frames", status.FrameCount)
	}
	if status.LastCaptureError != "" {
		t.Fatalf("discard is not an error, got %q", status.LastCaptureError)
	}
	framePath := filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")
	if _, err := os.Stat(framePath); !os.IsNotExist(err) {
		t.Fatalf("expected frame removed from disk, stat err=%v", err)
	}
}

func TestPostProcessFailureRemovesFrameAndRecordsError(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, _, processor := newTestEngine(t, cfg, clock)
	processor.normalizeErr = errors.New("ffmpeg exploded")

	if err := engine.CaptureNow(context.Background()); err == nil {
		t.Fatal("expected post-process error")
	}

	status := engine.GetStatus()
	if status.FrameCount != 0 {
		t.Fatalf("expected no frame appended, got %d", status.FrameCount)
	}
	if !strings.Contains(status.LastCaptureError, "post-process") {
		t.Fatalf("expected post-process error recorded, got %q", status.LastCaptureError)
	}
	framePath := filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")
	if _, err := os.Stat(framePath); !os.IsNotExist(err) {
		t.Fatalf("expected failed frame removed, stat err=%v", err)
	}
}

func TestRotationAppliesQuarterTurns(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, _, processor := newTestEngine(t, cfg, clock)

	settings := engine.Settings()
	settings.RotationDegrees = 180
	if err := engine.UpdateSettings(settings); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if got := processor.rotationCount(); got != 2 {
		t.Fatalf("expected 2 quarter turns for 180 degrees, got %d", got)
	}
}

func TestConvertNowEncodesAndResetsSession(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)

	for i := 0; i < 2; i++ {
		if err := engine.CaptureNow(context.Background()); err != nil {
			t.Fatalf("CaptureNow failed: %v", err)
		}
		clock.Advance(time.Minute)
	}
	before := engine.GetStatus()

	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	waitFor(t, 2*time.Second, func() bool {
		status := engine.GetStatus()
		return !status.Encoding && status.LastEncodeArtifact != ""
	})

	status := engine.GetStatus()
	if status.FrameCount != 0 {
		t.Fatalf("expected session reset, got %d frames", status.FrameCount)
	}
	if status.SessionID == before.SessionID {
		t.Fatal("expected new session identity after encode")
	}
	if !status.SessionStartedAt.IsZero() {
		t.Fatalf("expected cleared session start, got %v", status.SessionStartedAt)
	}

	wantArtifact := filepath.Join(cfg.VideosDir(), "video_250101_120000_250101_120100.mp4")
	if status.LastEncodeArtifact != wantArtifact {
		t.Fatalf("expected artifact %q, got %q", wantArtifact, status.LastEncodeArtifact)
	}
	if _, err := os.Stat(wantArtifact); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}

	// Encoded frames are gone; the encoder saw them in capture order.
	entries, err := os.ReadDir(cfg.FramesDir())
	if err != nil {
		t.Fatalf("read frames dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected frames deleted after encode, found %d entries", len(entries))
	}
	frames := encoder.lastCall()
	if len(frames) != 2 || !strings.HasSuffix(frames[0], "image_250101_120000.jpg") || !strings.HasSuffix(frames[1], "image_250101_120100.jpg") {
		t.Fatalf("expected ordered frame paths, got %v", frames)
	}
}

func TestConvertNowWithEmptySessionIsNoOp(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)

	if result := engine.ConvertNow(); result != timelapse.ConvertNothingToConvert {
		t.Fatalf("expected nothing to convert, got %q", result)
	}
	if encoder.callCount() != 0 {
		t.Fatal("expected encoder never invoked for empty session")
	}
}

func TestConvertNowDuringEncodeReportsAlreadyEncoding(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)
	encoder.block = make(chan struct{})
	encoder.started = make(chan struct{})

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	<-encoder.started

	if result := engine.ConvertNow(); result != timelapse.ConvertAlreadyEncoding {
		t.Fatalf("expected already encoding, got %q", result)
	}
	close(encoder.block)
	waitFor(t, 2*time.Second, func() bool { return !engine.GetStatus().Encoding })
	if encoder.callCount() != 1 {
		t.Fatalf("expected single encode, got %d", encoder.callCount())
	}
}

func TestFailedEncodeRetainsFramesForRetry(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)
	encoder.setError(errors.New("exit status 1"))

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	before := engine.GetStatus()

	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	waitFor(t, 2*time.Second, func() bool { return engine.GetStatus().LastEncodeError != "" })

	status := engine.GetStatus()
	if status.FrameCount != 1 {
		t.Fatalf("expected frames retained, got %d", status.FrameCount)
	}
	if status.SessionID != before.SessionID {
		t.Fatal("expected session identity unchanged after failed encode")
	}
	framePath := filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")
	if _, err := os.Stat(framePath); err != nil {
		t.Fatalf("expected frame still on disk: %v", err)
	}

	// The next trigger retries the same set and succeeds.
	encoder.setError(nil)
	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected retry to start, got %q", result)
	}
	waitFor(t, 2*time.Second, func() bool { return engine.GetStatus().LastEncodeArtifact != "" })
	if got := engine.GetStatus().FrameCount; got != 0 {
		t.Fatalf("expected session consumed on retry, got %d frames", got)
	}
}

func TestFrameCapturedDuringEncodeJoinsNextSession(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)
	encoder.block = make(chan struct{})
	encoder.started = make(chan struct{})

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	<-encoder.started

	clock.Advance(time.Minute)
	lateCapture := clock.Now()
	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("capture during encode failed: %v", err)
	}
	close(encoder.block)
	waitFor(t, 2*time.Second, func() bool { return !engine.GetStatus().Encoding && engine.GetStatus().LastEncodeArtifact != "" })

	status := engine.GetStatus()
	if status.FrameCount != 1 {
		t.Fatalf("expected late frame carried into next session, got %d frames", status.FrameCount)
	}
	if !status.SessionStartedAt.Equal(lateCapture) {
		t.Fatalf("expected next session anchored at %v, got %v", lateCapture, status.SessionStartedAt)
	}
	latePath := filepath.Join(cfg.FramesDir(), "image_250101_120100.jpg")
	if _, err := os.Stat(latePath); err != nil {
		t.Fatalf("expected late frame preserved: %v", err)
	}
	if frames := encoder.lastCall(); len(frames) != 1 {
		t.Fatalf("expected encode of the snapshot only, got %v", frames)
	}
}

func TestMissingFrameSkippedAtEncode(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)

	for i := 0; i < 2; i++ {
		if err := engine.CaptureNow(context.Background()); err != nil {
			t.Fatalf("CaptureNow failed: %v", err)
		}
		clock.Advance(time.Minute)
	}
	// An operator (or the filesystem) removed a frame behind our back.
	if err := os.Remove(filepath.Join(cfg.FramesDir(), "image_250101_120000.jpg")); err != nil {
		t.Fatalf("remove frame: %v", err)
	}

	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	waitFor(t, 2*time.Second, func() bool { return engine.GetStatus().LastEncodeArtifact != "" })

	frames := encoder.lastCall()
	if len(frames) != 1 || !strings.HasSuffix(frames[0], "image_250101_120100.jpg") {
		t.Fatalf("expected only the surviving frame encoded, got %v", frames)
	}
	if got := engine.GetStatus().FrameCount; got != 0 {
		t.Fatalf("expected session fully consumed, got %d frames", got)
	}
}

func TestRecoveryRebuildsSessionFromDisk(t *testing.T) {
	cfg := testConfig(t)
	names := []string{"image_250101_090000.jpg", "image_250101_091500.jpg", "not-a-frame.txt"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(cfg.FramesDir(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed frame: %v", err)
		}
	}

	engine, _, _, _ := newTestEngine(t, cfg, newFakeClock())
	status := engine.GetStatus()
	if status.FrameCount != 2 {
		t.Fatalf("expected 2 recovered frames, got %d", status.FrameCount)
	}
	want := time.Date(2025, 1, 1, 9, 0, 0, 0, time.Local)
	if !status.SessionStartedAt.Equal(want) {
		t.Fatalf("expected session start %v, got %v", want, status.SessionStartedAt)
	}
}

func TestUpdateSettingsPersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, _, _ := newTestEngine(t, cfg, clock)

	settings := engine.Settings()
	settings.CaptureIntervalSeconds = 300
	settings.FrameThreshold = 12
	if err := engine.UpdateSettings(settings); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if _, err := os.Stat(cfg.RuntimeConfigPath()); err != nil {
		t.Fatalf("expected runtime config persisted: %v", err)
	}

	reloaded, _, _, _ := newTestEngine(t, cfg, clock)
	got := reloaded.Settings()
	if got.CaptureIntervalSeconds != 300 || got.FrameThreshold != 12 {
		t.Fatalf("expected persisted settings reloaded, got %+v", got)
	}
}

func TestUpdateSettingsRejectsInvalidValues(t *testing.T) {
	cfg := testConfig(t)
	engine, _, _, _ := newTestEngine(t, cfg, newFakeClock())

	settings := engine.Settings()
	settings.RotationDegrees = 45
	if err := engine.UpdateSettings(settings); err == nil {
		t.Fatal("expected rejection of 45 degree rotation")
	}
	settings = engine.Settings()
	settings.CaptureIntervalSeconds = 0
	if err := engine.UpdateSettings(settings); err == nil {
		t.Fatal("expected rejection of zero interval")
	}
}

func TestLiveViewFailureSurfacesInStatus(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, sim, _, _ := newTestEngine(t, cfg, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	// The scheduler fires one capture immediately; with a frozen clock it
	// never comes due again, so from here on only the live view touches the
	// camera.
	waitFor(t, 5*time.Second, func() bool { return engine.GetStatus().FrameCount >= 1 })

	sim.FailNextCapture()
	waitFor(t, 5*time.Second, func() bool { return engine.GetStatus().LastLiveViewError != "" })

	status := engine.GetStatus()
	if !strings.Contains(status.LastLiveViewError, "live view") {
		t.Fatalf("expected live view error recorded, got %q", status.LastLiveViewError)
	}
	if !status.LastLiveViewErrorAt.Equal(clock.Now()) {
		t.Fatalf("expected error timestamp %v, got %v", clock.Now(), status.LastLiveViewErrorAt)
	}
	if status.LastCaptureError != "" {
		t.Fatalf("live view failure must not register as a capture error, got %q", status.LastCaptureError)
	}

	// The next refresh succeeds and clears the error.
	waitFor(t, 5*time.Second, func() bool { return engine.GetStatus().LastLiveViewError == "" })
}

func TestFrameThresholdTriggersSingleEncode(t *testing.T) {
	cfg := testConfig(t)
	// Two recovered frames plus the immediate scheduled capture reach the
	// threshold of three.
	for _, name := range []string{"image_250101_110000.jpg", "image_250101_113000.jpg"} {
		if err := os.WriteFile(filepath.Join(cfg.FramesDir(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed frame: %v", err)
		}
	}

	clock := newFakeClock()
	sim := camera.NewSimulator()
	encoder := &stubEncoder{}
	processor := &stubProcessor{}
	engine, err := timelapse.New(cfg, sim, encoder, processor, nil,
		timelapse.WithClock(clock.Now), timelapse.WithThresholdPoll(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	waitFor(t, 5*time.Second, func() bool {
		status := engine.GetStatus()
		return encoder.callCount() >= 1 && !status.Encoding && status.FrameCount == 0
	})

	// Plenty of further polls pass over the empty follow-up session.
	time.Sleep(100 * time.Millisecond)
	if got := encoder.callCount(); got != 1 {
		t.Fatalf("expected exactly one encode, got %d", got)
	}
	if frames := encoder.lastCall(); len(frames) != 3 {
		t.Fatalf("expected all three frames encoded, got %v", frames)
	}
	if got := engine.GetStatus().FrameCount; got != 0 {
		t.Fatalf("expected empty follow-up session, got %d frames", got)
	}
}

func TestConvertNowFlagsEncodingBeforeReturning(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)
	encoder.block = make(chan struct{})

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	if !engine.GetStatus().Encoding {
		t.Fatal("expected status to show the encode in flight right after start")
	}

	close(encoder.block)
	waitFor(t, 2*time.Second, func() bool { return !engine.GetStatus().Encoding })
}

func TestStopWaitsForBackgroundEncode(t *testing.T) {
	cfg := testConfig(t)
	clock := newFakeClock()
	engine, _, encoder, _ := newTestEngine(t, cfg, clock)
	encoder.block = make(chan struct{})
	encoder.started = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := engine.CaptureNow(context.Background()); err != nil {
		t.Fatalf("CaptureNow failed: %v", err)
	}
	if result := engine.ConvertNow(); result != timelapse.ConvertStarted {
		t.Fatalf("expected started, got %q", result)
	}
	<-encoder.started

	stopped := make(chan struct{})
	go func() {
		engine.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while an encode was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(encoder.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the encode finished")
	}
	if engine.GetStatus().Encoding {
		t.Fatal("expected encode finished once Stop returned")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testConfig(t)
	sim := camera.NewSimulator()
	encoder := &stubEncoder{}
	processor := &stubProcessor{}
	engine, err := timelapse.New(cfg, sim, encoder, processor, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	// The scheduler fires the first capture immediately.
	waitFor(t, 5*time.Second, func() bool { return sim.Captures() >= 1 })
	engine.Stop()
	engine.Stop()
}
