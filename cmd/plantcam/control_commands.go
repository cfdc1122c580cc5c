package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantcam/internal/ipc"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Take a frame immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CaptureNow()
				if err != nil {
					return err
				}
				if !resp.Captured {
					return fmt.Errorf("capture failed: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Frame captured")
				return nil
			})
		},
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Encode the current session into a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ConvertNow()
				if err != nil {
					return err
				}
				if resp.Started {
					fmt.Fprintln(cmd.OutOrStdout(), "Conversion started")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Conversion not started: %s\n", resp.Message)
				}
				return nil
			})
		},
	}
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge all videos into one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MergeVideos()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Merged into %s\n", resp.Merged.Name)
				return nil
			})
		},
	}
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if !resp.Sent {
					return fmt.Errorf("notification failed: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				return nil
			})
		},
	}
}
