package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fetchd/internal/api"
	"fetchd/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var optionPairs []string
	var expandPlaylists bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a media URL for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			options, err := parseOptionPairs(optionPairs)
			if err != nil {
				return err
			}

			resp, err := client.enqueue(api.EnqueueRequest{
				URL:             args[0],
				Options:         options,
				ExpandPlaylists: expandPlaylists,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, item := range resp.Items {
				fmt.Fprintf(out, "queued #%d %s (%s)\n", item.ID, item.Request.URL, item.Request.Platform)
			}
			if !wait {
				return nil
			}

			for _, item := range resp.Items {
				final, err := waitForItem(client, item.ID)
				if err != nil {
					return err
				}
				describeResult(cmd, final)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&optionPairs, "option", "o", nil, "Extractor option as key=value (repeatable)")
	cmd.Flags().BoolVar(&expandPlaylists, "expand-playlists", false, "Queue each playlist entry separately")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the download finishes")
	return cmd
}

func parseOptionPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	options := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", pair)
		}
		switch value {
		case "true":
			options[key] = true
		case "false":
			options[key] = false
		default:
			options[key] = value
		}
	}
	return options, nil
}

func waitForItem(client *apiClient, id int64) (queue.Item, error) {
	for {
		item, err := client.get(id)
		if err != nil {
			return queue.Item{}, err
		}
		if item.Status.Terminal() {
			return item, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func describeResult(cmd *cobra.Command, item queue.Item) {
	out := cmd.OutOrStdout()
	switch {
	case item.Status == queue.StatusCompleted && item.Result != nil:
		fmt.Fprintf(out, "#%d completed via %s (%d files)\n", item.ID, item.Result.DownloadMethod, len(item.Result.Files))
		for _, file := range item.Result.Files {
			fmt.Fprintf(out, "  %s\n", file.Path)
		}
	case item.Result != nil && item.Result.RawError != "":
		fmt.Fprintf(out, "#%d %s: %s\n", item.ID, item.Status, item.Result.RawError)
	default:
		fmt.Fprintf(out, "#%d %s\n", item.ID, item.Status)
	}
}
