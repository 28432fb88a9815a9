package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"docket/internal/queue"
)

func buildItemRows(items []*queue.Item) [][]string {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			item.RecordID,
			item.Jurisdiction,
			item.OrgID,
			formatStatusLabel(string(item.Status)),
			fmt.Sprintf("%d", item.Priority),
			dashIfEmpty(item.Window),
			formatJobRef(item.JobID),
			relativeTime(item.CreatedAt),
		})
	}
	return rows
}

func buildJobRows(jobs []*queue.Job) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			formatBatchLabel(job.BatchID),
			job.Jurisdiction,
			job.OrgID,
			formatStatusLabel(string(job.Status)),
			fmt.Sprintf("%d", job.RecordCount),
			job.SubmittedBy,
			relativeTime(job.CreatedAt),
		})
	}
	return rows
}

// buildStatusCountRows renders per-status counts in lifecycle order,
// skipping statuses with no items.
func buildStatusCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range queue.AllStatuses() {
		n := counts[string(status)]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), fmt.Sprintf("%d", n)})
	}
	return rows
}

func buildCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func printItemDetail(out io.Writer, item *queue.Item) {
	fmt.Fprintf(out, "Item %d\n", item.ID)
	fmt.Fprintf(out, "  %-14s %s\n", "Record:", item.RecordID)
	fmt.Fprintf(out, "  %-14s %s\n", "Jurisdiction:", item.Jurisdiction)
	fmt.Fprintf(out, "  %-14s %s\n", "Organization:", item.OrgID)
	fmt.Fprintf(out, "  %-14s %s\n", "Status:", formatStatusLabel(string(item.Status)))
	fmt.Fprintf(out, "  %-14s %d\n", "Priority:", item.Priority)
	fmt.Fprintf(out, "  %-14s %s\n", "Window:", dashIfEmpty(item.Window))
	if item.ScheduledAt.IsZero() {
		fmt.Fprintf(out, "  %-14s immediately\n", "Scheduled:")
	} else {
		fmt.Fprintf(out, "  %-14s %s\n", "Scheduled:", displayTime(item.ScheduledAt))
	}
	if item.FailureCount > 0 {
		fmt.Fprintf(out, "  %-14s %d\n", "Failures:", item.FailureCount)
		if item.Status == queue.StatusFailed {
			if item.RetryDue(time.Now()) {
				fmt.Fprintf(out, "  %-14s due now\n", "Next retry:")
			} else {
				fmt.Fprintf(out, "  %-14s %s\n", "Next retry:", displayTime(*item.NextRetryAt))
			}
		}
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  %-14s %s\n", "Error:", item.ErrorMessage)
	}
	fmt.Fprintf(out, "  %-14s %s\n", "Created:", displayTime(item.CreatedAt))
	fmt.Fprintf(out, "  %-14s %s\n", "Updated:", displayTime(item.UpdatedAt))
}

func printJobDetail(out io.Writer, job *queue.Job) {
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  %-14s %s\n", "Batch:", job.BatchID)
	fmt.Fprintf(out, "  %-14s %s\n", "Jurisdiction:", job.Jurisdiction)
	fmt.Fprintf(out, "  %-14s %s\n", "Organization:", job.OrgID)
	fmt.Fprintf(out, "  %-14s %s\n", "Status:", formatStatusLabel(string(job.Status)))
	fmt.Fprintf(out, "  %-14s %d (%s)\n", "Records:", job.RecordCount, strings.Join(job.RecordIDs, ", "))
	fmt.Fprintf(out, "  %-14s %s\n", "Submitted by:", job.SubmittedBy)
	fmt.Fprintf(out, "  %-14s %s\n", "Created:", displayTime(job.CreatedAt))
	if job.StartedAt != nil {
		fmt.Fprintf(out, "  %-14s %s\n", "Started:", displayTime(*job.StartedAt))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  %-14s %s\n", "Completed:", displayTime(*job.CompletedAt))
	}
	if job.RetryCount > 0 {
		fmt.Fprintf(out, "  %-14s %d\n", "Retries:", job.RetryCount)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  %-14s %s\n", "Error:", job.ErrorMessage)
	}
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatJobRef(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

func formatBatchLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > 28 {
		return value[:28]
	}
	return value
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// displayTime pairs the absolute timestamp with a relative phrasing so both
// scanning and scripting stay easy.
func displayTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.UTC().Format("2006-01-02 15:04"), humanize.Time(t))
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
