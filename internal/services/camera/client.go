package camera

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"plantcam/internal/services"
)

// Client defines still-capture behaviour. Capture writes a JPEG to the
// destination path or fails.
type Client interface {
	Capture(ctx context.Context, destination string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *CLI) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// CLI wraps a capture command such as termux-camera-photo that takes the
// destination path as its only argument.
type CLI struct {
	binary string
	exec   Executor
}

// NewCLI constructs a camera client for the given capture binary.
func NewCLI(binary string, opts ...Option) (*CLI, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("capture binary required")
	}
	client := &CLI{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Capture invokes the capture binary, creating the destination directory
// first. The camera hardware is exclusive; callers serialize invocations.
func (c *CLI) Capture(ctx context.Context, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return services.Wrap(services.ErrValidation, "camera", "capture", "destination path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "camera", "capture", "create destination directory", err)
	}

	output, err := c.exec.Run(ctx, c.binary, []string{destination})
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrConfiguration, "camera", "capture", c.binary+" not found", err)
		}
		return services.Wrap(services.ErrExternalTool, "camera", "capture", detail, err)
	}
	return nil
}

var _ Client = (*CLI)(nil)

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}
