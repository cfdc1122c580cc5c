package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"plantcam/internal/api"
	"plantcam/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent encodes and failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Events) == 0 {
					fmt.Fprintln(out, "No history yet")
					return nil
				}

				tbl := newListTable(
					listColumn{title: "Time"},
					listColumn{title: "Kind"},
					listColumn{title: "Detail"},
				)
				for _, event := range resp.Events {
					tbl.addRow(
						event.CreatedAt.Format("2006-01-02 15:04"),
						event.Kind,
						historyDetail(event),
					)
				}
				fmt.Fprintln(out, tbl.render())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")
	return cmd
}

func historyDetail(event api.HistoryEvent) string {
	if event.Artifact != "" {
		detail := fmt.Sprintf("%d frames -> %s", event.FrameCount, event.Artifact)
		if event.StartedAt != nil && event.FinishedAt != nil {
			detail += fmt.Sprintf(" (%s)", event.FinishedAt.Sub(*event.StartedAt).Round(time.Second))
		}
		return detail
	}
	parts := make([]string, 0, 2)
	if event.Operation != "" {
		parts = append(parts, event.Operation)
	}
	if event.Detail != "" {
		parts = append(parts, event.Detail)
	}
	return strings.Join(parts, ": ")
}
