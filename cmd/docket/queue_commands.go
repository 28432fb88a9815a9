package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/api"
	"docket/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the submission queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueApproveCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var jurisdiction string
	var org string
	var priority int
	var window string
	var scheduled string
	var hold bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add RECORD_ID...",
		Short: "Enqueue filing records as queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduledAt, err := parseScheduleTime(scheduled)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store queue.Store) error {
				created := make([]*queue.Item, 0, len(args))
				var skipped []string
				for _, record := range args {
					record = strings.TrimSpace(record)
					existing, err := activeItemForRecord(cmd.Context(), store, jurisdiction, org, record)
					if err != nil {
						return err
					}
					if existing != nil {
						skipped = append(skipped, fmt.Sprintf("Skipped %s: already item %d (%s)",
							record, existing.ID, formatStatusLabel(string(existing.Status))))
						continue
					}
					item, err := store.Enqueue(cmd.Context(), queue.NewItemParams{
						Jurisdiction: jurisdiction,
						OrgID:        org,
						RecordID:     record,
						Priority:     priority,
						Window:       window,
						ScheduledAt:  scheduledAt,
						Hold:         hold,
					})
					if err != nil {
						return err
					}
					created = append(created, item)
				}

				if jsonOutput {
					return writeJSON(cmd, api.FromQueueItems(created))
				}

				out := cmd.OutOrStdout()
				urgentPriority := ctx.configValue().Scheduler.UrgentPriority
				for _, item := range created {
					switch {
					case item.Status == queue.StatusPendingValidation:
						fmt.Fprintf(out, "Enqueued item %d (%s) awaiting validation\n", item.ID, item.RecordID)
					case item.IsUrgent(urgentPriority):
						fmt.Fprintf(out, "Enqueued item %d (%s) as urgent\n", item.ID, item.RecordID)
					default:
						fmt.Fprintf(out, "Enqueued item %d (%s)\n", item.ID, item.RecordID)
					}
				}
				for _, line := range skipped {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Filing jurisdiction (required)")
	cmd.Flags().StringVarP(&org, "org", "o", "", "Organization identifier (required)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Priority (0 uses the default)")
	cmd.Flags().StringVarP(&window, "window", "w", "", "Filing window, e.g. 2026-Q3")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "Earliest submission time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&hold, "hold", false, "Enqueue as pending validation instead of ready")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit created items as JSON")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jurisdiction string
	var org string
	var record string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.ItemFilter{
				Jurisdiction: jurisdiction,
				OrgID:        org,
				RecordID:     record,
				Limit:        limit,
			}
			for _, raw := range statuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (known: %s)", raw, knownStatusList())
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			return ctx.withStore(func(store queue.Store) error {
				if jsonOutput {
					svc := api.NewQueueService(store, ctx.configValue().Scheduler.UrgentPriority)
					items, err := svc.ListItems(cmd.Context(), filter)
					if err != nil {
						return err
					}
					return writeJSON(cmd, items)
				}

				items, err := store.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Record", "Jurisdiction", "Org", "Status", "Pri", "Window", "Job", "Created"},
					buildItemRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by item status (repeatable)")
	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Filter by jurisdiction")
	cmd.Flags().StringVarP(&org, "org", "o", "", "Filter by organization")
	cmd.Flags().StringVarP(&record, "record", "r", "", "Filter by source record")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit items as JSON")

	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ITEM_ID",
		Short: "Show one queue item and the job holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]

			return ctx.withStore(func(store queue.Store) error {
				svc := api.NewQueueService(store, ctx.configValue().Scheduler.UrgentPriority)

				if jsonOutput {
					item, job, err := svc.DescribeItem(cmd.Context(), id)
					if errors.Is(err, queue.ErrNotFound) {
						return writeJSON(cmd, map[string]any{"error": "not_found"})
					}
					if err != nil {
						return err
					}
					return writeJSON(cmd, struct {
						Item api.QueueItem `json:"item"`
						Job  *api.Job      `json:"job,omitempty"`
					}{Item: item, Job: job})
				}

				item, err := store.ItemByID(cmd.Context(), id)
				if errors.Is(err, queue.ErrNotFound) {
					return fmt.Errorf("item %d not found", id)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printItemDetail(out, item)
				if item.JobID != nil {
					job, err := store.JobByID(cmd.Context(), *item.JobID)
					if err == nil {
						fmt.Fprintln(out)
						printJobDetail(out, job)
					} else if !errors.Is(err, queue.ErrNotFound) {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the item as JSON")
	return cmd
}

func newQueueApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve ITEM_ID...",
		Short: "Release held items into the claimable pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store queue.Store) error {
				released, err := store.MarkValidated(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Approved %d of %d items\n", released, len(ids))
				if released < int64(len(ids)) {
					fmt.Fprintln(out, "Items not awaiting validation were left unchanged")
				}
				return nil
			})
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			urgentPriority := ctx.configValue().Scheduler.UrgentPriority

			return ctx.withStore(func(store queue.Store) error {
				if jsonOutput {
					svc := api.NewQueueService(store, urgentPriority)
					stats, err := svc.Stats(cmd.Context())
					if err != nil {
						return err
					}
					return writeJSON(cmd, stats)
				}

				stats, err := store.Statistics(cmd.Context(), urgentPriority)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if stats.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				byStatus := make(map[string]int, len(stats.ByStatus))
				for status, n := range stats.ByStatus {
					byStatus[string(status)] = n
				}
				table := renderTable([]string{"Status", "Count"}, buildStatusCountRows(byStatus), []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)
				fmt.Fprintf(out, "Total: %d\n", stats.Total)
				fmt.Fprintf(out, "Outstanding: %d\n", stats.Outstanding())
				fmt.Fprintf(out, "Urgent (priority >= %d): %d\n", urgentPriority, stats.UrgentCount)

				if len(stats.ByJurisdiction) > 0 {
					fmt.Fprintln(out)
					table = renderTable([]string{"Jurisdiction", "Count"}, buildCountRows(stats.ByJurisdiction), []columnAlignment{alignLeft, alignRight})
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit statistics as JSON")
	return cmd
}

// parseScheduleTime accepts RFC 3339 or a bare date; an empty value means
// immediately eligible.
// activeItemForRecord returns the newest non-terminal item already holding
// the record within the jurisdiction and organization, if any. Submitted and
// cancelled items do not block filing the record again.
func activeItemForRecord(ctx context.Context, store queue.Store, jurisdiction, org, record string) (*queue.Item, error) {
	items, err := store.ListItems(ctx, queue.ItemFilter{
		Jurisdiction: jurisdiction,
		OrgID:        org,
		RecordID:     record,
	})
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if !item.IsTerminal() {
			return item, nil
		}
	}
	return nil, nil
}

func parseScheduleTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid schedule time %q (use RFC 3339 or YYYY-MM-DD)", value)
}

func knownStatusList() string {
	statuses := queue.AllStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
