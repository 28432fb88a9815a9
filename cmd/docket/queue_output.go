package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"docket/internal/api"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printPassSummary(out io.Writer, summary api.PassSummary) {
	if summary.UrgentProcessed == 0 && summary.GroupsFound == 0 && summary.JobsCreated == 0 && len(summary.Errors) == 0 {
		fmt.Fprintln(out, "Nothing to schedule")
		return
	}
	fmt.Fprintf(out, "Urgent items processed: %d (%d jobs)\n", summary.UrgentProcessed, summary.UrgentJobsCreated)
	fmt.Fprintf(out, "Groups found: %d\n", summary.GroupsFound)
	fmt.Fprintf(out, "Batches created: %d\n", summary.BatchesCreated)
	if len(summary.JobIDs) > 0 {
		fmt.Fprintf(out, "Jobs created: %d (ids %s)\n", summary.JobsCreated, joinIDs(summary.JobIDs))
	} else {
		fmt.Fprintf(out, "Jobs created: %d\n", summary.JobsCreated)
	}
	printSummaryErrors(out, summary.Errors)
}

func printRequeueSummary(out io.Writer, summary api.RequeueSummary) {
	if summary.Requeued == 0 && summary.Cancelled == 0 && len(summary.Errors) == 0 {
		fmt.Fprintln(out, "No failed items due for retry")
		return
	}
	fmt.Fprintf(out, "Requeued: %d\n", summary.Requeued)
	fmt.Fprintf(out, "Cancelled: %d\n", summary.Cancelled)
	printSummaryErrors(out, summary.Errors)
}

func printSummaryErrors(out io.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(out, "Errors (%d):\n", len(errs))
	for _, msg := range errs {
		fmt.Fprintf(out, "  - %s\n", msg)
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}
