package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plantcam/internal/ipc"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "List encoded videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ListVideos()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Videos) == 0 {
					fmt.Fprintln(out, "No videos yet")
					return nil
				}

				tbl := newListTable(
					listColumn{title: "Name"},
					listColumn{title: "Size", numeric: true},
					listColumn{title: "Modified"},
				)
				for _, video := range resp.Videos {
					tbl.addRow(
						video.Name,
						humanize.Bytes(uint64(video.SizeBytes)),
						humanize.Time(video.ModifiedAt),
					)
				}
				fmt.Fprintln(out, tbl.render())
				return nil
			})
		},
	}

	videosCmd.AddCommand(newVideosRemoveCommand(ctx))
	return videosCmd
}

func newVideosRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a video by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.DeleteVideo(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
