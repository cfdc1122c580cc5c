package timelapse

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// frameStampLayout is the timestamp embedded in frame filenames. Second
// resolution keeps lexical order equal to capture order.
const frameStampLayout = "060102_150405"

var frameNamePattern = regexp.MustCompile(`^image_(\d{6}_\d{6})\.jpg$`)

// Frame is one captured still belonging to the current session.
type Frame struct {
	Path       string
	CapturedAt time.Time
}

// session is the mutable accumulation state. Guarded by Engine.mu.
type session struct {
	id        string
	startedAt time.Time
	frames    []Frame
}

func newSession() session {
	return session{id: uuid.NewString()}
}

func (s *session) append(frame Frame) {
	if len(s.frames) == 0 && s.startedAt.IsZero() {
		s.startedAt = frame.CapturedAt
	}
	s.frames = append(s.frames, frame)
}

// consume removes the given paths from the session and resets identity. The
// remaining frames (captured while an encode was running) seed the next
// session, so none are ever lost to the snapshot race.
func (s *session) consume(paths map[string]struct{}) {
	remaining := s.frames[:0]
	for _, frame := range s.frames {
		if _, encoded := paths[frame.Path]; !encoded {
			remaining = append(remaining, frame)
		}
	}
	s.frames = remaining
	s.id = uuid.NewString()
	if len(s.frames) > 0 {
		s.startedAt = s.frames[0].CapturedAt
	} else {
		s.startedAt = time.Time{}
	}
}

func (s *session) contains(path string) bool {
	for _, frame := range s.frames {
		if frame.Path == path {
			return true
		}
	}
	return false
}

// frameName builds the canonical filename for a capture instant.
func frameName(at time.Time) string {
	return fmt.Sprintf("image_%s.jpg", at.Format(frameStampLayout))
}

// parseFrameStamp extracts the capture time from a frame filename.
func parseFrameStamp(name string) (time.Time, bool) {
	match := frameNamePattern.FindStringSubmatch(name)
	if match == nil {
		return time.Time{}, false
	}
	at, err := time.ParseInLocation(frameStampLayout, match[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// videoName builds the artifact filename covering the given frame range.
func videoName(first, last time.Time) string {
	return fmt.Sprintf("video_%s_%s.mp4", first.Format(frameStampLayout), last.Format(frameStampLayout))
}

// scanFrames rebuilds the session frame list from the frames directory.
// Disk is the durable source of truth across restarts; files that do not
// match the frame naming convention are ignored.
func scanFrames(framesDir string) ([]Frame, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frameNamePattern.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	frames := make([]Frame, 0, len(names))
	for _, name := range names {
		at, ok := parseFrameStamp(name)
		if !ok {
			continue
		}
		frames = append(frames, Frame{Path: filepath.Join(framesDir, name), CapturedAt: at})
	}
	return frames, nil
}

// framePathsOrdered returns the snapshot's paths preserving capture order.
func framePathsOrdered(frames []Frame) []string {
	paths := make([]string, 0, len(frames))
	for _, frame := range frames {
		paths = append(paths, frame.Path)
	}
	return paths
}
