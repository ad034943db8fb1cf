package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fetchd/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "max concurrency: %d\n", status.MaxConcurrency)
			fmt.Fprintf(out, "fallback to process: %v\n", status.FallbackEnabled)

			rows := make([][]string, 0, len(status.Modes))
			for _, mode := range status.Modes {
				path := "process"
				if mode.UseLibrary {
					path = "library"
				}
				rows = append(rows, []string{mode.Platform, path})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Platform", "Execution Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			for _, s := range []queue.Status{queue.StatusPending, queue.StatusRunning, queue.StatusCompleted, queue.StatusFailed, queue.StatusCancelled} {
				if count := status.Counts[s]; count > 0 {
					fmt.Fprintf(out, "%s: %s\n", s, strconv.Itoa(count))
				}
			}
			return nil
		},
	}
}
