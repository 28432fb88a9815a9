package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docket/internal/queue"
)

// ClaimBatch atomically converts a planned batch into a job. The job row and
// the member updates commit together or not at all: members are flipped to
// queued only where they are still ready and unassigned, and when fewer rows
// than planned are affected the whole transaction rolls back with a
// *queue.PartialClaimError.
//
// Under READ COMMITTED a competing claim blocks on the member row locks and
// re-evaluates the predicate once the winner commits, so contested members
// simply stop matching and the loser reports the shortfall. Claims that
// Postgres aborts to break a deadlock are retried whole.
func (s *Store) ClaimBatch(ctx context.Context, req queue.ClaimRequest) (*queue.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var job *queue.Job
	err := s.runWithRetry(ctx, func() error {
		claimed, claimErr := s.claimOnce(ctx, req)
		if claimErr != nil {
			return claimErr
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) claimOnce(ctx context.Context, req queue.ClaimRequest) (*queue.Job, error) {
	ctx = ensureContext(ctx)

	recordsJSON, err := json.Marshal(req.RecordIDs)
	if err != nil {
		return nil, fmt.Errorf("encode record ids: %w", err)
	}
	now := time.Now().UTC()

	insertQuery, insertArgs, err := s.builder.
		Insert("submission_jobs").
		Columns("batch_id", "jurisdiction", "org_id", "record_ids", "record_count",
			"status", "submitted_by", "created_at").
		Values(req.BatchID, req.Jurisdiction, req.OrgID, recordsJSON, len(req.RecordIDs),
			queue.JobPending, nullableString(req.SubmittedBy), now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job insert: %w", err)
	}

	updateBuilder := s.builder.
		Update("queue_items").
		Set("status", queue.StatusQueued).
		Set("updated_at", now).
		Where(sq.Eq{
			"id":     req.ItemIDs,
			"status": queue.StatusReady,
			"job_id": nil,
		})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var jobID int64
	if err := tx.QueryRowContext(ctx, insertQuery, insertArgs...).Scan(&jobID); err != nil {
		return nil, fmt.Errorf("insert job for batch %s: %w", req.BatchID, err)
	}

	updateQuery, updateArgs, err := updateBuilder.Set("job_id", jobID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim update: %w", err)
	}
	upd, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return nil, fmt.Errorf("claim items for batch %s: %w", req.BatchID, err)
	}
	affected, err := upd.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claimed rows for batch %s: %w", req.BatchID, err)
	}
	if affected != int64(len(req.ItemIDs)) {
		// Deferred rollback discards the job row; nothing partial persists.
		return nil, &queue.PartialClaimError{
			BatchID:   req.BatchID,
			Requested: len(req.ItemIDs),
			Claimed:   int(affected),
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim for batch %s: %w", req.BatchID, err)
	}
	return s.JobByID(ctx, jobID)
}
