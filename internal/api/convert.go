package api

import (
	"time"

	"docket/internal/queue"
	"docket/internal/scheduler"
)

// FromQueueItem converts a queue item into its wire form.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	out := QueueItem{
		ID:           item.ID,
		Jurisdiction: item.Jurisdiction,
		OrgID:        item.OrgID,
		RecordID:     item.RecordID,
		Status:       string(item.Status),
		Priority:     item.Priority,
		Window:       item.Window,
		ScheduledAt:  FormatTime(item.ScheduledAt),
		FailureCount: item.FailureCount,
		NextRetryAt:  formatTimePtr(item.NextRetryAt),
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    FormatTime(item.CreatedAt),
		UpdatedAt:    FormatTime(item.UpdatedAt),
	}
	if item.JobID != nil {
		id := *item.JobID
		out.JobID = &id
	}
	return out
}

// FromQueueItems converts a slice of queue items, preserving order.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromJob converts a submission job into its wire form.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	out := Job{
		ID:           job.ID,
		BatchID:      job.BatchID,
		Jurisdiction: job.Jurisdiction,
		OrgID:        job.OrgID,
		RecordCount:  job.RecordCount,
		Status:       string(job.Status),
		SubmittedBy:  job.SubmittedBy,
		CreatedAt:    FormatTime(job.CreatedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		CompletedAt:  formatTimePtr(job.CompletedAt),
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
	}
	if len(job.RecordIDs) > 0 {
		out.RecordIDs = append([]string(nil), job.RecordIDs...)
	}
	return out
}

// FromJobs converts a slice of jobs, preserving order.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatistics converts a statistics snapshot into its wire form.
func FromStatistics(stats *queue.Statistics) *Statistics {
	if stats == nil {
		return nil
	}
	out := &Statistics{
		Total:          stats.Total,
		ByStatus:       make(map[string]int, len(stats.ByStatus)),
		ByJurisdiction: make(map[string]int, len(stats.ByJurisdiction)),
		ByPriority:     make(map[string]int, len(stats.ByPriority)),
		UrgentCount:    stats.UrgentCount,
		Outstanding:    stats.Outstanding(),
		GeneratedAt:    FormatTime(stats.GeneratedAt),
	}
	for status, n := range stats.ByStatus {
		out.ByStatus[string(status)] = n
	}
	for jurisdiction, n := range stats.ByJurisdiction {
		out.ByJurisdiction[jurisdiction] = n
	}
	for bucket, n := range stats.ByPriority {
		out.ByPriority[bucket] = n
	}
	return out
}

// FromPassResult converts a scheduling pass result into its wire form.
func FromPassResult(result *scheduler.PassResult) *PassSummary {
	if result == nil {
		return nil
	}
	out := &PassSummary{
		UrgentProcessed:   result.UrgentProcessed,
		UrgentJobsCreated: result.UrgentJobsCreated,
		GroupsFound:       result.GroupsFound,
		BatchesCreated:    result.BatchesCreated,
		JobsCreated:       result.JobsCreated,
	}
	if len(result.JobIDs) > 0 {
		out.JobIDs = append([]int64(nil), result.JobIDs...)
	}
	if len(result.Errors) > 0 {
		out.Errors = append([]string(nil), result.Errors...)
	}
	return out
}

// FromRequeueResult converts a requeue sweep result into its wire form.
func FromRequeueResult(result *scheduler.RequeueResult) *RequeueSummary {
	if result == nil {
		return nil
	}
	out := &RequeueSummary{
		Requeued:  result.Requeued,
		Cancelled: result.Cancelled,
	}
	if len(result.Errors) > 0 {
		out.Errors = append([]string(nil), result.Errors...)
	}
	return out
}

// FormatTime renders t in the shared wire format, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

// ParseTime is the inverse of FormatTime. It reports false for empty or
// malformed values.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
