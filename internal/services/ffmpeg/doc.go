// Package ffmpeg wraps the ffmpeg and ffprobe binaries for timelapse
// encoding, video merging and per-frame post-processing.
package ffmpeg
