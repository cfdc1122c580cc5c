package camera

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"plantcam/internal/services"
)

// Simulator is an in-process camera used by tests and --test-mode runs. It
// writes deterministic JPEG-shaped payloads and supports failure injection
// plus a configurable black-frame ratio that the simulated probe reports.
type Simulator struct {
	mu              sync.Mutex
	blackRatio      float64
	failNextCapture bool
	ratioByFile     map[string]float64
	captures        int
}

// NewSimulator constructs a simulator producing bright frames.
func NewSimulator() *Simulator {
	return &Simulator{ratioByFile: make(map[string]float64)}
}

// SetBlackRatio sets the black ratio reported for subsequently captured frames.
func (s *Simulator) SetBlackRatio(ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	s.blackRatio = ratio
}

// FailNextCapture makes the next Capture call return an error.
func (s *Simulator) FailNextCapture() {
	s.mu.Lock()
	s.failNextCapture = true
	s.mu.Unlock()
}

// Captures returns the number of successful captures.
func (s *Simulator) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// BlackRatio reports the ratio recorded for a previously captured file.
func (s *Simulator) BlackRatio(path string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ratio, ok := s.ratioByFile[path]
	return ratio, ok
}

// Capture writes a fake JPEG payload to the destination.
func (s *Simulator) Capture(_ context.Context, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "camera", "capture", "create destination directory", err)
	}

	s.mu.Lock()
	if s.failNextCapture {
		s.failNextCapture = false
		s.mu.Unlock()
		return services.Wrap(services.ErrExternalTool, "camera", "capture", "simulated capture failure", nil)
	}
	ratio := s.blackRatio
	s.mu.Unlock()

	payload := append([]byte{0xff, 0xd8, 0xff}, []byte("SIMJPEG")...)
	payload = append(payload, 0xff, 0xd9)
	if err := os.WriteFile(destination, payload, 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "camera", "capture", "write simulated frame", err)
	}

	s.mu.Lock()
	s.ratioByFile[destination] = ratio
	s.captures++
	s.mu.Unlock()
	return nil
}

var _ Client = (*Simulator)(nil)
