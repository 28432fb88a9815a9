package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docket/internal/queue"
)

const itemColumns = "id, jurisdiction, org_id, record_id, status, priority, submission_window, scheduled_at, job_id, failure_count, next_retry_at, error_message, created_at, updated_at"

const jobColumns = "id, batch_id, jurisdiction, org_id, record_ids, record_count, status, submitted_by, created_at, started_at, completed_at, error_message, retry_count"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*queue.Item, error) {
	var (
		id           int64
		jurisdiction string
		orgID        string
		recordID     string
		statusStr    string
		priority     int64
		window       sql.NullString
		scheduledRaw string
		jobID        sql.NullInt64
		failureCount int64
		nextRetryRaw sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&jurisdiction,
		&orgID,
		&recordID,
		&statusStr,
		&priority,
		&window,
		&scheduledRaw,
		&jobID,
		&failureCount,
		&nextRetryRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &queue.Item{
		ID:           id,
		Jurisdiction: jurisdiction,
		OrgID:        orgID,
		RecordID:     recordID,
		Status:       queue.Status(statusStr),
		Priority:     int(priority),
		Window:       window.String,
		FailureCount: int(failureCount),
		ErrorMessage: errorMessage.String,
	}
	if jobID.Valid {
		v := jobID.Int64
		item.JobID = &v
	}
	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		item.ScheduledAt = scheduled
	}
	if nextRetryRaw.Valid {
		if next, err := parseTimeString(nextRetryRaw.String); err == nil {
			item.NextRetryAt = &next
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*queue.Job, error) {
	var (
		id           int64
		batchID      string
		jurisdiction string
		orgID        string
		recordsRaw   string
		recordCount  int64
		statusStr    string
		submittedBy  sql.NullString
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		errorMessage sql.NullString
		retryCount   int64
	)

	if err := scanner.Scan(
		&id,
		&batchID,
		&jurisdiction,
		&orgID,
		&recordsRaw,
		&recordCount,
		&statusStr,
		&submittedBy,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&errorMessage,
		&retryCount,
	); err != nil {
		return nil, err
	}

	job := &queue.Job{
		ID:           id,
		BatchID:      batchID,
		Jurisdiction: jurisdiction,
		OrgID:        orgID,
		RecordCount:  int(recordCount),
		Status:       queue.JobStatus(statusStr),
		SubmittedBy:  submittedBy.String,
		ErrorMessage: errorMessage.String,
		RetryCount:   int(retryCount),
	}
	if recordsRaw != "" {
		if err := json.Unmarshal([]byte(recordsRaw), &job.RecordIDs); err != nil {
			return nil, fmt.Errorf("decode record ids for job %d: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout stores UTC timestamps at fixed width so the text comparisons in
// the scheduling predicates (scheduled_at <= ?, next_retry_at <= ?) order
// chronologically. RFC3339Nano would trim trailing fractional zeros and break
// that ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
