package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docket/internal/queue"
)

var itemColumns = []string{
	"id", "jurisdiction", "org_id", "record_id", "status", "priority",
	"submission_window", "scheduled_at", "job_id", "failure_count",
	"next_retry_at", "error_message", "created_at", "updated_at",
}

var jobColumns = []string{
	"id", "batch_id", "jurisdiction", "org_id", "record_ids", "record_count",
	"status", "submitted_by", "created_at", "started_at", "completed_at",
	"error_message", "retry_count",
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// claimable is the predicate shared by the scheduling selections: ready,
// unassigned, past its scheduled time, and past any retry gate.
func claimable(now time.Time) sq.And {
	return sq.And{
		sq.Eq{"status": queue.StatusReady},
		sq.Eq{"job_id": nil},
		sq.LtOrEq{"scheduled_at": now.UTC()},
		sq.Or{
			sq.Eq{"next_retry_at": nil},
			sq.LtOrEq{"next_retry_at": now.UTC()},
		},
	}
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*queue.Item, error) {
	var (
		id           int64
		jurisdiction string
		orgID        string
		recordID     string
		statusStr    string
		priority     int64
		window       sql.NullString
		scheduled    time.Time
		jobID        sql.NullInt64
		failureCount int64
		nextRetry    sql.NullTime
		errorMessage sql.NullString
		created      time.Time
		updated      time.Time
	)

	if err := scanner.Scan(
		&id,
		&jurisdiction,
		&orgID,
		&recordID,
		&statusStr,
		&priority,
		&window,
		&scheduled,
		&jobID,
		&failureCount,
		&nextRetry,
		&errorMessage,
		&created,
		&updated,
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
		ScheduledAt:  scheduled.UTC(),
		FailureCount: int(failureCount),
		ErrorMessage: errorMessage.String,
		CreatedAt:    created.UTC(),
		UpdatedAt:    updated.UTC(),
	}
	if jobID.Valid {
		v := jobID.Int64
		item.JobID = &v
	}
	if nextRetry.Valid {
		v := nextRetry.Time.UTC()
		item.NextRetryAt = &v
	}
	return item, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*queue.Job, error) {
	var (
		id           int64
		batchID      string
		jurisdiction string
		orgID        string
		recordsRaw   []byte
		recordCount  int64
		statusStr    string
		submittedBy  sql.NullString
		created      time.Time
		started      sql.NullTime
		completed    sql.NullTime
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
		&created,
		&started,
		&completed,
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
		CreatedAt:    created.UTC(),
		ErrorMessage: errorMessage.String,
		RetryCount:   int(retryCount),
	}
	if len(recordsRaw) > 0 {
		if err := json.Unmarshal(recordsRaw, &job.RecordIDs); err != nil {
			return nil, fmt.Errorf("decode record ids for job %d: %w", id, err)
		}
	}
	if started.Valid {
		v := started.Time.UTC()
		job.StartedAt = &v
	}
	if completed.Valid {
		v := completed.Time.UTC()
		job.CompletedAt = &v
	}
	return job, nil
}

func (s *Store) selectItems(ctx context.Context, builder sq.SelectBuilder) ([]*queue.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*queue.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) selectJobs(ctx context.Context, builder sq.SelectBuilder) ([]*queue.Job, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
