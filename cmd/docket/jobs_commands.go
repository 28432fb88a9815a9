package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docket/internal/api"
	"docket/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect submission jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jurisdiction string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submission jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.JobFilter{
				Jurisdiction: jurisdiction,
				Limit:        limit,
			}
			for _, raw := range statuses {
				status, ok := queue.ParseJobStatus(raw)
				if !ok {
					return fmt.Errorf("unknown job status %q (known: %s)", raw, knownJobStatusList())
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			return ctx.withStore(func(store queue.Store) error {
				if jsonOutput {
					svc := api.NewQueueService(store, ctx.configValue().Scheduler.UrgentPriority)
					jobs, err := svc.ListJobs(cmd.Context(), filter)
					if err != nil {
						return err
					}
					return writeJSON(cmd, jobs)
				}

				jobs, err := store.ListJobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Batch", "Jurisdiction", "Org", "Status", "Records", "Submitted By", "Created"},
					buildJobRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Filter by jurisdiction")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit jobs as JSON")

	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show one submission job with its record membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]

			return ctx.withStore(func(store queue.Store) error {
				if jsonOutput {
					svc := api.NewQueueService(store, ctx.configValue().Scheduler.UrgentPriority)
					job, err := svc.DescribeJob(cmd.Context(), id)
					if errors.Is(err, queue.ErrNotFound) {
						return writeJSON(cmd, map[string]any{"error": "not_found"})
					}
					if err != nil {
						return err
					}
					return writeJSON(cmd, job)
				}

				job, err := store.JobByID(cmd.Context(), id)
				if errors.Is(err, queue.ErrNotFound) {
					return fmt.Errorf("job %d not found", id)
				}
				if err != nil {
					return err
				}
				printJobDetail(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the job as JSON")
	return cmd
}

func knownJobStatusList() string {
	statuses := queue.AllJobStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
