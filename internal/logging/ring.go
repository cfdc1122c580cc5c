package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RingHandler retains the most recent log lines in memory so the dashboard
// and CLI can show recent activity without touching log files. WithAttrs
// clones share the same underlying buffer.
type RingHandler struct {
	ring  *ringBuffer
	level slog.Level
	attrs []slog.Attr
}

type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func (b *ringBuffer) append(line string) {
	b.mu.Lock()
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

func (b *ringBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	if b.full {
		out = append(out, b.lines[b.next:]...)
	}
	out = append(out, b.lines[:b.next]...)
	return out
}

// NewRingHandler creates a handler retaining up to capacity lines at or above
// the given level.
func NewRingHandler(capacity int, level slog.Level) *RingHandler {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingHandler{
		ring:  &ringBuffer{lines: make([]string, capacity)},
		level: level,
	}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *RingHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var component string
	var extras []string
	for _, attr := range h.attrs {
		if attr.Key == FieldComponent {
			if component == "" {
				component = attr.Value.Resolve().String()
			}
			continue
		}
		extras = append(extras, fmt.Sprintf("%s=%s", attr.Key, formatValue(attr.Value)))
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == FieldComponent {
			if component == "" {
				component = attr.Value.Resolve().String()
			}
			return true
		}
		extras = append(extras, fmt.Sprintf("%s=%s", attr.Key, formatValue(attr.Value)))
		return true
	})

	var builder strings.Builder
	builder.WriteString(timestamp.Format("2006-01-02 15:04:05"))
	builder.WriteByte(' ')
	builder.WriteString(levelLabel(record.Level))
	builder.WriteByte(' ')
	if component != "" {
		builder.WriteString("[")
		builder.WriteString(component)
		builder.WriteString("] ")
	}
	builder.WriteString(record.Message)
	for _, extra := range extras {
		builder.WriteByte(' ')
		builder.WriteString(extra)
	}

	h.ring.append(builder.String())
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &RingHandler{ring: h.ring, level: h.level}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return clone
}

func (h *RingHandler) WithGroup(string) slog.Handler { return h }

// Recent returns the retained lines, oldest first.
func (h *RingHandler) Recent() []string {
	lines := h.ring.snapshot()
	kept := lines[:0]
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return kept
}
