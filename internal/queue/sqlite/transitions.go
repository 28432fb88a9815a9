package sqlite

import (
	"context"
	"fmt"
	"time"

	"docket/internal/queue"
)

// MarkValidated releases held items into the claimable pool. With no ids it
// releases every held item. Returns the number of items transitioned.
func (s *Store) MarkValidated(ctx context.Context, ids ...int64) (int64, error) {
	stamp := formatTime(time.Now().UTC())
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?`,
			queue.StatusReady, stamp, queue.StatusPendingValidation,
		)
		if err != nil {
			return 0, fmt.Errorf("approve held items: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+3)
	args = append(args, queue.StatusReady, stamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, queue.StatusPendingValidation)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("approve selected items: %w", err)
	}
	return res.RowsAffected()
}

// RequeueItem re-admits a failed item: back to ready with the retry gate set,
// the failure count incremented, and the job reference and error cleared.
// Returns false when the item is no longer failed (a concurrent pass won).
func (s *Store) RequeueItem(ctx context.Context, id int64, nextRetry time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, next_retry_at = ?, failure_count = failure_count + 1,
             job_id = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		queue.StatusReady,
		formatTime(nextRetry),
		formatTime(time.Now().UTC()),
		id,
		queue.StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("requeue item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue item %d rows: %w", id, err)
	}
	return affected == 1, nil
}

// CancelItem terminally cancels a failed item, clearing the job reference and
// keeping the error message for the audit trail. Returns false when the item
// is no longer failed.
func (s *Store) CancelItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, job_id = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		queue.StatusCancelled,
		formatTime(time.Now().UTC()),
		id,
		queue.StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("cancel item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel item %d rows: %w", id, err)
	}
	return affected == 1, nil
}
