package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plantcam/internal/api"
	"plantcam/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				writeStatus(cmd.OutOrStdout(), resp.Status)
				return nil
			})
		},
	}
}

func writeStatus(w io.Writer, status api.Status) {
	colorize := shouldColorize(w)
	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(w, line)
		}
	}
	line := func(label string, kind statusKind, message string) {
		fmt.Fprintln(w, renderStatusLine(label, kind, message, colorize))
	}

	section("Daemon")
	if status.Running {
		line("Running", statusOK, fmt.Sprintf("pid %d", status.PID))
	} else {
		line("Running", statusError, "daemon not running")
	}
	fmt.Fprintln(w)

	section("Session")
	line("Session", statusInfo, status.SessionID)
	frameKind := statusOK
	if status.Settings.FrameThreshold > 0 && status.FrameCount >= status.Settings.FrameThreshold {
		frameKind = statusWarn
	}
	line("Frames", frameKind, fmt.Sprintf("%d of %d", status.FrameCount, status.Settings.FrameThreshold))
	line("Started", statusInfo, timeOrNever(status.SessionStartedAt))
	fmt.Fprintln(w)

	section("Capture")
	line("Last capture", statusInfo, timeOrNever(status.LastCaptureAt))
	line("Next capture", statusInfo, timeOrNever(status.NextCaptureAt))
	line("Live view", statusInfo, timeOrNever(status.LastLiveViewAt))
	if status.LastLiveViewError != "" {
		line("Live view error", statusWarn, fmt.Sprintf("%s (%s)", status.LastLiveViewError, timeOrNever(status.LastLiveViewErrorAt)))
	}
	if status.LastCaptureError != "" {
		line("Capture error", statusError, fmt.Sprintf("%s (%s)", status.LastCaptureError, timeOrNever(status.LastCaptureErrorAt)))
	} else {
		line("Capture error", statusOK, "none")
	}
	fmt.Fprintln(w)

	section("Encode")
	line("Encoding", statusInfo, yesNo(status.Encoding))
	if status.LastEncodeArtifact != "" {
		line("Last video", statusOK, fmt.Sprintf("%s (%s)", status.LastEncodeArtifact, timeOrNever(status.LastEncodeAt)))
	} else {
		line("Last video", statusInfo, "none yet")
	}
	if status.LastEncodeError != "" {
		line("Encode error", statusError, fmt.Sprintf("%s (%s)", status.LastEncodeError, timeOrNever(status.LastEncodeErrorAt)))
	} else {
		line("Encode error", statusOK, "none")
	}
	fmt.Fprintln(w)

	section("Settings")
	line("Interval", statusInfo, (time.Duration(status.Settings.CaptureIntervalSeconds) * time.Second).String())
	line("Rotation", statusInfo, fmt.Sprintf("%d°", status.Settings.RotationDegrees))
	line("Black filter", statusInfo, fmt.Sprintf("%.0f%%", status.Settings.BlackDetectionPercentage))

	if status.Repo != nil {
		fmt.Fprintln(w)
		section("Deployment")
		line("Branch", statusInfo, status.Repo.Branch)
		line("Last commit", statusInfo, status.Repo.LastCommitDate)
	}
}

func timeOrNever(at *time.Time) string {
	if at == nil || at.IsZero() {
		return "never"
	}
	return humanize.Time(*at)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
