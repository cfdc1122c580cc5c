// Package timelapse implements the capture/encode engine: scheduled frame
// capture, live-view refresh, session accumulation, threshold-triggered
// encoding and the manual control surface used by the dashboard and CLI.
package timelapse
