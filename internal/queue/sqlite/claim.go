package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docket/internal/queue"
)

// ClaimBatch atomically converts a planned batch into a job. The job row and
// the member updates commit together or not at all: members are flipped to
// queued only where they are still ready and unassigned, and when fewer rows
// than planned are affected the whole transaction rolls back with a
// *queue.PartialClaimError.
//
// A busy database retries the whole attempt so every retry re-validates the
// members against a fresh snapshot.
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
	stamp := formatTime(time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO submission_jobs (
            batch_id, jurisdiction, org_id, record_ids, record_count,
            status, submitted_by, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.BatchID,
		req.Jurisdiction,
		req.OrgID,
		string(recordsJSON),
		len(req.RecordIDs),
		queue.JobPending,
		nullableString(req.SubmittedBy),
		stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job for batch %s: %w", req.BatchID, err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job id for batch %s: %w", req.BatchID, err)
	}

	args := make([]any, 0, len(req.ItemIDs)+4)
	args = append(args, queue.StatusQueued, jobID, stamp)
	for _, id := range req.ItemIDs {
		args = append(args, id)
	}
	args = append(args, queue.StatusReady)
	upd, err := tx.ExecContext(
		ctx,
		`UPDATE queue_items SET status = ?, job_id = ?, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(req.ItemIDs))+`)
           AND status = ? AND job_id IS NULL`,
		args...,
	)
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
