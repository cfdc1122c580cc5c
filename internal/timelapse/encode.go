package timelapse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"plantcam/internal/logging"
)

// ConvertResult describes the outcome of an encode trigger.
type ConvertResult string

const (
	// ConvertStarted means an encode of the current frames began.
	ConvertStarted ConvertResult = "started"
	// ConvertAlreadyEncoding means an encode was already in flight; the
	// trigger was a no-op.
	ConvertAlreadyEncoding ConvertResult = "already encoding"
	// ConvertNothingToConvert means the session held no frames.
	ConvertNothingToConvert ConvertResult = "nothing to convert"
)

// ConvertNow triggers an encode of the current session in the background and
// reports immediately whether it started. Concurrent triggers collapse into
// the in-flight encode.
func (e *Engine) ConvertNow() ConvertResult {
	if !e.encodeMu.TryLock() {
		return ConvertAlreadyEncoding
	}

	snapshot := e.snapshotFrames()
	if len(snapshot) == 0 {
		e.encodeMu.Unlock()
		return ConvertNothingToConvert
	}

	// Flag before returning so a status read right after "started" already
	// shows the encode in flight.
	e.mu.Lock()
	e.encoding = true
	e.mu.Unlock()

	// Stop observes completion through encodeMu, which it acquires as a
	// barrier after the loops exit. The loop WaitGroup stays untouched here;
	// an Add against its possibly-zero counter could race Stop's Wait.
	ctx := e.runContext()
	go func() {
		defer e.encodeMu.Unlock()
		e.encodeSnapshot(ctx, snapshot)
	}()
	return ConvertStarted
}

// convert is the synchronous variant used by the threshold loop.
func (e *Engine) convert(ctx context.Context) ConvertResult {
	if !e.encodeMu.TryLock() {
		return ConvertAlreadyEncoding
	}
	defer e.encodeMu.Unlock()

	snapshot := e.snapshotFrames()
	if len(snapshot) == 0 {
		return ConvertNothingToConvert
	}
	e.encodeSnapshot(ctx, snapshot)
	return ConvertStarted
}

// snapshotFrames copies the session frame list under the state lock. Frames
// captured after this point belong to the next session.
func (e *Engine) snapshotFrames() []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := make([]Frame, len(e.session.frames))
	copy(snapshot, e.session.frames)
	return snapshot
}

// encodeSnapshot runs the encode outside the state lock. Caller holds
// encodeMu with a non-empty snapshot.
func (e *Engine) encodeSnapshot(ctx context.Context, snapshot []Frame) {
	e.mu.Lock()
	e.encoding = true
	sessionID := e.session.id
	startedAt := e.session.startedAt
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.encoding = false
		e.mu.Unlock()
	}()

	// A frame file missing from disk is skipped, not fatal. Disk is the
	// source of truth; the in-memory list may briefly trail a manual cleanup.
	present := snapshot[:0:0]
	for _, frame := range snapshot {
		if _, err := os.Stat(frame.Path); err != nil {
			e.logger.Warn("frame missing at encode time, skipping",
				logging.String("frame", filepath.Base(frame.Path)),
				logging.Error(err),
			)
			continue
		}
		present = append(present, frame)
	}
	if len(present) == 0 {
		// Nothing on disk to encode; drop the stale entries so the session
		// reflects reality.
		e.finishEncode(snapshot, "")
		return
	}

	first := present[0].CapturedAt
	last := present[len(present)-1].CapturedAt
	artifact := filepath.Join(e.cfg.VideosDir(), videoName(first, last))

	e.logger.Info("encoding session",
		logging.String("session_id", sessionID),
		logging.Int("frame_count", len(present)),
		logging.String("artifact", filepath.Base(artifact)),
	)

	fps := e.cfg.Session.FPS
	codec := e.cfg.Session.Codec
	if err := e.encoder.EncodeTimelapse(ctx, framePathsOrdered(present), artifact, fps, codec); err != nil {
		e.recordEncodeError(ctx, err)
		return
	}

	// Success: delete exactly the frames that went into the artifact, then
	// reset the session around whatever arrived during the encode.
	for _, frame := range snapshot {
		if err := os.Remove(frame.Path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove encoded frame",
				logging.String("frame", filepath.Base(frame.Path)),
				logging.Error(err),
			)
		}
	}
	e.finishEncode(snapshot, artifact)

	finishedAt := e.now()
	if e.recorder != nil {
		if err := e.recorder.RecordEncode(ctx, sessionID, startedAt, finishedAt, len(present), artifact); err != nil {
			e.logger.Warn("failed to journal encode", logging.Error(err))
		}
	}
	if e.notifier != nil {
		e.notifier.EncodeCompleted(ctx, artifact, len(present))
	}
	e.logger.Info("encode complete",
		logging.String("session_id", sessionID),
		logging.String("artifact", filepath.Base(artifact)),
		logging.Int("frame_count", len(present)),
	)
}

// finishEncode consumes the snapshot from the session and records the
// artifact. An empty artifact means the snapshot was dropped without output.
func (e *Engine) finishEncode(snapshot []Frame, artifact string) {
	consumed := make(map[string]struct{}, len(snapshot))
	for _, frame := range snapshot {
		consumed[frame.Path] = struct{}{}
	}

	e.mu.Lock()
	e.session.consume(consumed)
	if artifact != "" {
		e.lastEncodeArtifact = artifact
		e.lastEncodeAt = e.now()
		e.lastEncodeError = ""
	}
	carried := len(e.session.frames)
	nextID := e.session.id
	e.mu.Unlock()

	if carried > 0 {
		e.logger.Info("frames captured during encode carried into next session",
			logging.String("session_id", nextID),
			logging.Int("frame_count", carried),
		)
	}
}

// recordEncodeError leaves the session frames untouched so the next trigger
// retries the same set.
func (e *Engine) recordEncodeError(ctx context.Context, encodeErr error) {
	detail := fmt.Sprintf("encode: %v", encodeErr)
	at := e.now()

	e.mu.Lock()
	e.lastEncodeError = detail
	e.lastEncodeErrorAt = at
	e.mu.Unlock()

	e.logger.Error("encode failed, frames retained", logging.Error(encodeErr))
	if e.recorder != nil {
		if err := e.recorder.RecordFailure(ctx, "encode", detail); err != nil {
			e.logger.Warn("failed to journal encode error", logging.Error(err))
		}
	}
	if e.notifier != nil {
		e.notifier.EncodeFailed(ctx, detail)
	}
}
