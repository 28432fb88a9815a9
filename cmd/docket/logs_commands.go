package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/ipc"
	"docket/internal/logs"
)

// followWait is how long each poll blocks for new lines while following.
const followWait = time.Second

// logFetch reads one batch of log lines. wait only matters in follow
// mode, where the fetch may block until new lines arrive.
type logFetch func(offset int64, limit int, wait time.Duration) ([]string, int64, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		Long: "Show the tail of the daemon log file.\n\n" +
			"Reads through the daemon when it is running and falls back to the\n" +
			"log file on disk otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(ctx.socketPath())
			if err == nil {
				defer client.Close()
				return runLogTail(cmd, lines, follow, func(offset int64, limit int, wait time.Duration) ([]string, int64, error) {
					reply, err := client.LogTail(ipc.LogTailRequest{
						Offset:     offset,
						Limit:      limit,
						WaitMillis: int(wait / time.Millisecond),
					})
					if err != nil {
						return nil, 0, err
					}
					return reply.Lines, reply.Offset, nil
				})
			}
			if !daemonUnavailable(err) {
				return wrapDialError(err, ctx.socketPath())
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runLogTail(cmd, lines, follow, func(offset int64, limit int, wait time.Duration) ([]string, int64, error) {
				result, err := logs.Tail(cmd.Context(), cfg.LogFilePath(), logs.TailOptions{
					Offset: offset,
					Limit:  limit,
					Wait:   wait,
				})
				if err != nil {
					return nil, 0, err
				}
				return result.Lines, result.Offset, nil
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep reading as new lines are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show (0 starts at the beginning)")
	return cmd
}

// runLogTail prints the initial window, then keeps polling while follow
// is set. The follow loop exits when the command context is cancelled.
func runLogTail(cmd *cobra.Command, lines int, follow bool, fetch logFetch) error {
	out := cmd.OutOrStdout()

	offset := int64(-1)
	if lines <= 0 {
		offset = 0
	}

	batch, next, err := fetch(offset, lines, 0)
	if err != nil {
		return err
	}
	for _, line := range batch {
		fmt.Fprintln(out, line)
	}
	offset = next

	if !follow {
		if len(batch) == 0 {
			fmt.Fprintln(out, "No log entries yet")
		}
		return nil
	}

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}

		batch, next, err = fetch(offset, 0, followWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, line := range batch {
			fmt.Fprintln(out, line)
		}
		offset = next
	}
}
