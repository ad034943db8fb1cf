package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var platformFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.history(platformFilter, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no finished downloads")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				method := entry.Method
				if method == "" {
					method = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(entry.ItemID, 10),
					entry.FinishedAt.Local().Format("2006-01-02 15:04"),
					entry.Platform,
					entry.Status,
					method,
					strconv.Itoa(entry.FileCount),
					entry.URL,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Finished", "Platform", "Status", "Method", "Files", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformFilter, "platform", "p", "", "Filter by platform")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	return cmd
}
