package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"plantcam/internal/fileutil"
	"plantcam/internal/services"
)

// probeResolution returns the pixel dimensions of the first video stream.
// Failures are swallowed; callers treat an unreadable probe as "no guard".
func (c *Client) probeResolution(ctx context.Context, path string) (width, height int, ok bool) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	}
	stdout, _, err := c.exec.Run(ctx, c.ffprobe, args)
	if err != nil {
		return 0, 0, false
	}
	parts := strings.SplitN(strings.TrimSpace(string(stdout)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	width, werr := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, herr := strconv.Atoi(strings.TrimSpace(parts[1]))
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// RotateLeft rotates the image 90 degrees counter-clockwise in place. The
// rotated frame is written to a sibling and renamed over the original.
func (c *Client) RotateLeft(ctx context.Context, imagePath string) error {
	return c.rewriteImage(ctx, imagePath, "rotate", "transpose=2")
}

// NormalizeFullHD letterboxes the image onto a 1920x1080 canvas so mixed
// orientations concatenate into one stream without resolution switches.
func (c *Client) NormalizeFullHD(ctx context.Context, imagePath string) error {
	const filter = "scale=1920:1080:force_original_aspect_ratio=decrease," +
		"pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black"
	return c.rewriteImage(ctx, imagePath, "normalize", filter)
}

func (c *Client) rewriteImage(ctx context.Context, imagePath, operation, filter string) error {
	ext := filepath.Ext(imagePath)
	tmp := strings.TrimSuffix(imagePath, ext) + ".tmp" + ext

	args := []string{"-hide_banner", "-y", "-i", imagePath, "-vf", filter, "-q:v", "2", tmp}
	if _, stderr, err := c.exec.Run(ctx, c.ffmpeg, args); err != nil {
		_ = fileutil.RemoveIfExists(tmp)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, toolDetail(stderr, err), err)
	}
	if err := fileutil.ReplaceFile(tmp, imagePath); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, "replace image", err)
	}
	return nil
}

// EstimateBlackRatio reports the fraction of dark pixels in the image as a
// value between 0 and 1. ok is false when the probe cannot read the frame;
// callers keep such frames rather than guessing.
func (c *Client) EstimateBlackRatio(ctx context.Context, imagePath string) (ratio float64, ok bool) {
	// blackframe with amount=0 logs a pblack percentage for every frame.
	graph := fmt.Sprintf("movie=%s,blackframe=amount=0:threshold=32", escapeFilterPath(imagePath))
	args := []string{
		"-v", "info",
		"-f", "lavfi",
		"-i", graph,
		"-show_entries", "frame_tags=lavfi.blackframe.pblack",
		"-of", "csv=p=0",
	}
	stdout, _, err := c.exec.Run(ctx, c.ffprobe, args)
	if err != nil {
		return 0, false
	}
	value := strings.TrimSpace(string(stdout))
	if value == "" {
		return 0, false
	}
	// Multiple frames should not occur for a still; take the first line.
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	percent, perr := strconv.ParseFloat(value, 64)
	if perr != nil || percent < 0 || percent > 100 {
		return 0, false
	}
	return percent / 100, true
}

// escapeFilterPath quotes a path for use inside a lavfi filter graph, where
// colons, commas and quotes are syntax.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	path = strings.ReplaceAll(path, `'`, `\'`)
	return "'" + path + "'"
}
