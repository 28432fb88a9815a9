package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"docket/internal/queue"
)

// JobByID fetches a submission job by identifier.
func (s *Store) JobByID(ctx context.Context, id int64) (*queue.Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM submission_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, queue.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter queue.JobFilter) ([]*queue.Job, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.Jurisdiction != "" {
		conditions = append(conditions, "jurisdiction = ?")
		args = append(args, filter.Jurisdiction)
	}

	query := `SELECT ` + jobColumns + ` FROM submission_jobs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
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

// StartJob marks a pending job and its queued members as in progress. Used by
// the downstream submitter when it picks the job up.
func (s *Store) StartJob(ctx context.Context, jobID int64) error {
	stamp := formatTime(time.Now().UTC())
	return s.jobTransition(ctx, jobID, queue.JobPending,
		`UPDATE submission_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		[]any{queue.JobInProgress, stamp, jobID, queue.JobPending},
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		[]any{queue.StatusInProgress, stamp, jobID, queue.StatusQueued},
	)
}

// CompleteJob marks a job delivered and every member submitted.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	stamp := formatTime(time.Now().UTC())
	return s.jobTransition(ctx, jobID, queue.JobInProgress,
		`UPDATE submission_jobs SET status = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
		[]any{queue.JobCompleted, stamp, jobID, queue.JobPending, queue.JobInProgress},
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE job_id = ? AND status IN (?, ?)`,
		[]any{queue.StatusSubmitted, stamp, jobID, queue.StatusQueued, queue.StatusInProgress},
	)
}

// FailJob records a delivery failure: the job is marked failed with the
// message and its members move to failed. Members keep their job reference
// until the retry pass re-admits them, so the failure stays traceable.
func (s *Store) FailJob(ctx context.Context, jobID int64, message string) error {
	stamp := formatTime(time.Now().UTC())
	return s.jobTransition(ctx, jobID, queue.JobInProgress,
		`UPDATE submission_jobs SET status = ?, completed_at = ?, error_message = ?, retry_count = retry_count + 1
         WHERE id = ? AND status IN (?, ?)`,
		[]any{queue.JobFailed, stamp, nullableString(message), jobID, queue.JobPending, queue.JobInProgress},
		`UPDATE queue_items SET status = ?, error_message = ?, updated_at = ? WHERE job_id = ? AND status IN (?, ?)`,
		[]any{queue.StatusFailed, nullableString(message), stamp, jobID, queue.StatusQueued, queue.StatusInProgress},
	)
}

func (s *Store) jobTransition(ctx context.Context, jobID int64, want queue.JobStatus, jobQuery string, jobArgs []any, itemQuery string, itemArgs []any) error {
	ctx = ensureContext(ctx)
	return s.runWithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin job tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, jobQuery, jobArgs...)
		if err != nil {
			return fmt.Errorf("update job %d: %w", jobID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("job %d rows: %w", jobID, err)
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM submission_jobs WHERE id = ?`, jobID).Scan(&exists); err != nil {
				return fmt.Errorf("check job %d: %w", jobID, err)
			}
			if exists == 0 {
				return fmt.Errorf("job %d: %w", jobID, queue.ErrNotFound)
			}
			return fmt.Errorf("job %d is not %s", jobID, want)
		}

		if _, err := tx.ExecContext(ctx, itemQuery, itemArgs...); err != nil {
			return fmt.Errorf("update items for job %d: %w", jobID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit job %d transition: %w", jobID, err)
		}
		return nil
	})
}
