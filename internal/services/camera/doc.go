// Package camera wraps the still-capture command used for both full
// resolution timelapse frames and the cheap live-view snapshot.
package camera
