package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"docket/internal/api"
)

func renderDaemonStatus(out io.Writer, status api.DaemonStatus) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		detail := fmt.Sprintf("running (pid %d, started %s)", status.PID, humanizeStamp(status.StartedAt))
		fmt.Fprintln(out, renderStatusLine("State", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("State", statusWarn, "not running", colorize))
	}
	backend := status.Backend
	if status.DatabasePath != "" {
		backend = fmt.Sprintf("%s (%s)", status.Backend, status.DatabasePath)
	}
	fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, backend, colorize))
	fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))

	if status.Running {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Scheduler", colorize) {
			fmt.Fprintln(out, line)
		}
		kind, detail := passStatusDetail(status)
		fmt.Fprintln(out, renderStatusLine("Last pass", kind, detail, colorize))
		kind, detail = requeueStatusDetail(status)
		fmt.Fprintln(out, renderStatusLine("Last requeue", kind, detail, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	stats := status.Statistics
	switch {
	case stats == nil:
		fmt.Fprintln(out, "Statistics unavailable")
	case stats.Total == 0:
		fmt.Fprintln(out, "Queue is empty")
	default:
		table := renderTable([]string{"Status", "Count"}, buildStatusCountRows(stats.ByStatus), []columnAlignment{alignLeft, alignRight})
		fmt.Fprintln(out, table)
		fmt.Fprintf(out, "Total: %d  Outstanding: %d  Urgent: %d\n", stats.Total, stats.Outstanding, stats.UrgentCount)
	}
}

func passStatusDetail(status api.DaemonStatus) (statusKind, string) {
	if status.LastPass == nil {
		return statusInfo, "none yet"
	}
	detail := fmt.Sprintf("%d jobs created %s", status.LastPass.JobsCreated, humanizeStamp(status.LastPassAt))
	if n := len(status.LastPass.Errors); n > 0 {
		return statusWarn, fmt.Sprintf("%s, %d errors", detail, n)
	}
	return statusOK, detail
}

func requeueStatusDetail(status api.DaemonStatus) (statusKind, string) {
	if status.LastRequeue == nil {
		return statusInfo, "none yet"
	}
	detail := fmt.Sprintf("requeued %d, cancelled %d %s", status.LastRequeue.Requeued, status.LastRequeue.Cancelled, humanizeStamp(status.LastRequeueAt))
	if n := len(status.LastRequeue.Errors); n > 0 {
		return statusWarn, fmt.Sprintf("%s, %d errors", detail, n)
	}
	return statusOK, detail
}

// humanizeStamp turns a wire timestamp into a relative phrase, falling back
// to the raw value when it does not parse.
func humanizeStamp(value string) string {
	if t, ok := api.ParseTime(value); ok {
		return humanize.Time(t)
	}
	return value
}
