// Package services hosts the wrappers around external capabilities (camera
// capture, ffmpeg encoding) and the shared error classification used by the
// engine to distinguish tool failures from configuration problems.
package services
