package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docket/internal/queue"
)

// JobByID fetches a submission job by identifier.
func (s *Store) JobByID(ctx context.Context, id int64) (*queue.Job, error) {
	query, args, err := s.builder.
		Select(jobColumns...).
		From("submission_jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}

	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
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
	builder := s.builder.
		Select(jobColumns...).
		From("submission_jobs").
		OrderBy("id DESC")
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.Jurisdiction != "" {
		builder = builder.Where(sq.Eq{"jurisdiction": filter.Jurisdiction})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return s.selectJobs(ctx, builder)
}

// StartJob marks a pending job and its queued members as in progress. Used by
// the downstream submitter when it picks the job up.
func (s *Store) StartJob(ctx context.Context, jobID int64) error {
	stamp := time.Now().UTC()
	return s.jobTransition(ctx, jobID, queue.JobPending,
		s.builder.Update("submission_jobs").
			Set("status", queue.JobInProgress).
			Set("started_at", stamp).
			Where(sq.Eq{"id": jobID, "status": queue.JobPending}),
		s.builder.Update("queue_items").
			Set("status", queue.StatusInProgress).
			Set("updated_at", stamp).
			Where(sq.Eq{"job_id": jobID, "status": queue.StatusQueued}),
	)
}

// CompleteJob marks a job delivered and every member submitted.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	stamp := time.Now().UTC()
	return s.jobTransition(ctx, jobID, queue.JobInProgress,
		s.builder.Update("submission_jobs").
			Set("status", queue.JobCompleted).
			Set("completed_at", stamp).
			Where(sq.Eq{"id": jobID, "status": []queue.JobStatus{queue.JobPending, queue.JobInProgress}}),
		s.builder.Update("queue_items").
			Set("status", queue.StatusSubmitted).
			Set("updated_at", stamp).
			Where(sq.Eq{"job_id": jobID, "status": []queue.Status{queue.StatusQueued, queue.StatusInProgress}}),
	)
}

// FailJob records a delivery failure: the job is marked failed with the
// message and its members move to failed. Members keep their job reference
// until the retry pass re-admits them, so the failure stays traceable.
func (s *Store) FailJob(ctx context.Context, jobID int64, message string) error {
	stamp := time.Now().UTC()
	return s.jobTransition(ctx, jobID, queue.JobInProgress,
		s.builder.Update("submission_jobs").
			Set("status", queue.JobFailed).
			Set("completed_at", stamp).
			Set("error_message", nullableString(message)).
			Set("retry_count", sq.Expr("retry_count + 1")).
			Where(sq.Eq{"id": jobID, "status": []queue.JobStatus{queue.JobPending, queue.JobInProgress}}),
		s.builder.Update("queue_items").
			Set("status", queue.StatusFailed).
			Set("error_message", nullableString(message)).
			Set("updated_at", stamp).
			Where(sq.Eq{"job_id": jobID, "status": []queue.Status{queue.StatusQueued, queue.StatusInProgress}}),
	)
}

func (s *Store) jobTransition(ctx context.Context, jobID int64, want queue.JobStatus, jobUpdate, itemUpdate sq.UpdateBuilder) error {
	ctx = ensureContext(ctx)

	jobQuery, jobArgs, err := jobUpdate.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}
	itemQuery, itemArgs, err := itemUpdate.ToSql()
	if err != nil {
		return fmt.Errorf("build item update: %w", err)
	}

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
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM submission_jobs WHERE id = $1", jobID).Scan(&exists); err != nil {
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
