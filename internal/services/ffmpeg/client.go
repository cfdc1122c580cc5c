package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"plantcam/internal/fileutil"
	"plantcam/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps the ffmpeg and ffprobe binaries.
type Client struct {
	ffmpeg  string
	ffprobe string
	exec    Executor
}

// New constructs an ffmpeg client.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffmpegBinary == "" || ffprobeBinary == "" {
		return nil, errors.New("ffmpeg and ffprobe binaries required")
	}
	client := &Client{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// minArtifactBytes guards against encoders that exit zero but emit a husk.
const minArtifactBytes = 256

// libx264 rejects frames above its macroblock-per-frame level limits; very
// large photos trip this. Downscale proactively well below the observed limit.
const maxMacroblocksPerFrame = 120_000

// maxLongEdge is the downscale target when the macroblock guard fires.
const maxLongEdge = 2160

// EncodeTimelapse encodes the ordered frame paths into an MP4 at the given
// frame rate. The output is written to a temporary sibling and renamed in
// only after the encode succeeds and passes a minimum-size check, so readers
// never observe a truncated artifact.
func (c *Client) EncodeTimelapse(ctx context.Context, frames []string, output string, fps int, codec string) error {
	if len(frames) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "encode", "no frames provided", nil)
	}
	if fps <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "encode", "fps must be positive", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "create output directory", err)
	}

	listPath, err := writeConcatList(frames, fps)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "write concat list", err)
	}
	defer func() {
		_ = fileutil.RemoveIfExists(listPath)
	}()

	tmp := temporaryOutput(output)
	if err := fileutil.RemoveIfExists(tmp); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "remove stale output", err)
	}

	filters := []string{}
	if width, height, ok := c.probeResolution(ctx, frames[0]); ok {
		if isH264Family(codec) && needsDownscale(width, height) {
			filters = append(filters, scaleFilter(width, height))
		}
	}
	filters = append(filters, "format=yuv420p")

	args := encodeArgs(listPath, strings.Join(filters, ","), fps, codec, tmp)
	_, stderr, runErr := c.exec.Run(ctx, c.ffmpeg, args)
	if runErr != nil {
		// ffprobe may have failed to read the frame, or the codec escaped the
		// heuristic. Retry once with a downscale when the level limit bites.
		if levelLimitHit(stderr) && !strings.Contains(strings.Join(filters, ","), "scale=") {
			_ = fileutil.RemoveIfExists(tmp)
			retryFilters := fmt.Sprintf("scale=%d:-2,format=yuv420p", maxLongEdge)
			args = encodeArgs(listPath, retryFilters, fps, codec, tmp)
			if _, stderr, runErr = c.exec.Run(ctx, c.ffmpeg, args); runErr != nil {
				_ = fileutil.RemoveIfExists(tmp)
				return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", toolDetail(stderr, runErr), runErr)
			}
		} else {
			_ = fileutil.RemoveIfExists(tmp)
			return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", toolDetail(stderr, runErr), runErr)
		}
	}

	if size := fileutil.FileSize(tmp); size < minArtifactBytes {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode",
			fmt.Sprintf("generated video is too small (%d bytes); conversion likely failed", size), nil)
	}

	if err := fileutil.ReplaceFile(tmp, output); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "publish artifact", err)
	}
	return nil
}

// MergeVideos concatenates the inputs, in order, into output via stream copy.
func (c *Client) MergeVideos(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "merge", "no videos provided", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "create output directory", err)
	}

	var list bytes.Buffer
	for _, input := range inputs {
		fmt.Fprintf(&list, "file '%s'\n", filepath.ToSlash(input))
	}
	listFile, err := os.CreateTemp(filepath.Dir(output), "merge-*.txt")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "create concat list", err)
	}
	listPath := listFile.Name()
	defer func() {
		_ = fileutil.RemoveIfExists(listPath)
	}()
	if _, err := listFile.Write(list.Bytes()); err != nil {
		_ = listFile.Close()
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "write concat list", err)
	}
	if err := listFile.Close(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "close concat list", err)
	}

	tmp := temporaryOutput(output)
	if err := fileutil.RemoveIfExists(tmp); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "remove stale output", err)
	}

	args := []string{"-hide_banner", "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", tmp}
	if _, stderr, runErr := c.exec.Run(ctx, c.ffmpeg, args); runErr != nil {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", toolDetail(stderr, runErr), runErr)
	}

	if size := fileutil.FileSize(tmp); size < minArtifactBytes {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge",
			fmt.Sprintf("merged video is too small (%d bytes)", size), nil)
	}

	if err := fileutil.ReplaceFile(tmp, output); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "merge", "publish artifact", err)
	}
	return nil
}

// fallbackCodec is built into every ffmpeg; used when the configured encoder
// is not compiled in (common for libx264 on Termux builds).
const fallbackCodec = "mpeg4"

// ResolveCodec returns preferred when ffmpeg provides that encoder and
// mpeg4 otherwise. When the encoder list cannot be read the preferred codec
// is kept; the encode itself will surface the real error.
func (c *Client) ResolveCodec(ctx context.Context, preferred string) string {
	encoders, err := c.ListEncoders(ctx)
	if err != nil {
		return preferred
	}
	if _, ok := encoders[preferred]; ok {
		return preferred
	}
	return fallbackCodec
}

// ListEncoders returns the video encoder names ffmpeg reports.
func (c *Client) ListEncoders(ctx context.Context) (map[string]struct{}, error) {
	stdout, stderr, err := c.exec.Run(ctx, c.ffmpeg, []string{"-hide_banner", "-encoders"})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "list encoders", toolDetail(stderr, err), err)
	}

	encoders := make(map[string]struct{})
	for _, line := range strings.Split(string(stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			encoders[fields[1]] = struct{}{}
		}
	}
	return encoders, nil
}

func encodeArgs(listPath, filters string, fps int, codec, output string) []string {
	return []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-vf", filters,
		"-r", strconv.Itoa(fps),
		"-c:v", codec,
		"-preset", "veryfast",
		output,
	}
}

// writeConcatList emits a concat-demuxer script assigning each frame a
// duration of 1/fps. The final frame is listed twice; the demuxer drops the
// last duration directive otherwise.
func writeConcatList(frames []string, fps int) (string, error) {
	duration := strconv.FormatFloat(1.0/float64(fps), 'f', 6, 64)

	var buf bytes.Buffer
	for _, frame := range frames {
		fmt.Fprintf(&buf, "file '%s'\nduration %s\n", filepath.ToSlash(frame), duration)
	}
	fmt.Fprintf(&buf, "file '%s'\n", filepath.ToSlash(frames[len(frames)-1]))

	file, err := os.CreateTemp("", "plantcam-frames-*.txt")
	if err != nil {
		return "", err
	}
	path := file.Name()
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func temporaryOutput(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".tmp.mp4"
}

func isH264Family(codec string) bool {
	switch codec {
	case "libx264", "h264", "h264_mediacodec":
		return true
	}
	return strings.Contains(codec, "264")
}

func needsDownscale(width, height int) bool {
	mbWidth := (width + 15) / 16
	mbHeight := (height + 15) / 16
	return mbWidth*mbHeight > maxMacroblocksPerFrame
}

func scaleFilter(width, height int) string {
	if width >= height {
		return fmt.Sprintf("scale=%d:-2", maxLongEdge)
	}
	return fmt.Sprintf("scale=-2:%d", maxLongEdge)
}

func levelLimitHit(stderr []byte) bool {
	return bytes.Contains(bytes.ToLower(stderr), []byte("level limit"))
}

func toolDetail(stderr []byte, err error) string {
	detail := strings.TrimSpace(string(stderr))
	if detail == "" {
		return err.Error()
	}
	// Keep the tail; ffmpeg prefixes pages of banner and stream info.
	const maxDetail = 512
	if len(detail) > maxDetail {
		detail = detail[len(detail)-maxDetail:]
	}
	return detail
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
