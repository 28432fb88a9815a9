package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusReady             Status = "ready"
	StatusPendingValidation Status = "pending_validation"
	StatusQueued            Status = "queued"
	StatusInProgress        Status = "in_progress"
	StatusSubmitted         Status = "submitted"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// JobStatus represents the lifecycle of a submission job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// DefaultPriority is assigned to items enqueued without an explicit priority.
const DefaultPriority = 5

// DefaultUrgentPriority is the threshold at or above which an item bypasses
// grouping and is claimed individually.
const DefaultUrgentPriority = 8

var allStatuses = []Status{
	StatusReady,
	StatusPendingValidation,
	StatusQueued,
	StatusInProgress,
	StatusSubmitted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allJobStatuses = []JobStatus{
	JobPending,
	JobInProgress,
	JobCompleted,
	JobFailed,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Terminal statuses receive no further automatic action.
var terminalStatuses = map[Status]struct{}{
	StatusSubmitted: {},
	StatusCancelled: {},
}

// Item represents one pending filing obligation.
type Item struct {
	ID           int64
	Jurisdiction string
	OrgID        string
	RecordID     string
	Status       Status
	Priority     int
	Window       string
	ScheduledAt  time.Time
	JobID        *int64
	FailureCount int
	NextRetryAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Job represents one batch of claimed items handed to the downstream
// submitter. Membership is fixed at claim time and never edited afterwards;
// jobs are retained as audit records.
type Job struct {
	ID           int64
	BatchID      string
	Jurisdiction string
	OrgID        string
	RecordIDs    []string
	RecordCount  int
	Status       JobStatus
	SubmittedBy  string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	RetryCount   int
}

// AllStatuses returns the ordered list of known item statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseStatus converts a string into a known item Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the item has reached a state with no further
// automatic action.
func (i Item) IsTerminal() bool {
	_, ok := terminalStatuses[i.Status]
	return ok
}

// IsUrgent reports whether the item's priority meets the escalation threshold.
func (i Item) IsUrgent(threshold int) bool {
	return i.Priority >= threshold
}

// RetryDue reports whether the item's retry gate has passed. Items without a
// next-retry time are due immediately.
func (i Item) RetryDue(now time.Time) bool {
	return i.NextRetryAt == nil || !i.NextRetryAt.After(now)
}
