package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docket/internal/queue"
)

// MarkValidated releases held items into the claimable pool. With no ids it
// releases every held item. Returns the number of items transitioned.
func (s *Store) MarkValidated(ctx context.Context, ids ...int64) (int64, error) {
	builder := s.builder.
		Update("queue_items").
		Set("status", queue.StatusReady).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"status": queue.StatusPendingValidation})
	if len(ids) > 0 {
		builder = builder.Where(sq.Eq{"id": ids})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build approve update: %w", err)
	}
	res, err := s.db.ExecContext(ensureContext(ctx), query, args...)
	if err != nil {
		return 0, fmt.Errorf("approve held items: %w", err)
	}
	return res.RowsAffected()
}

// RequeueItem re-admits a failed item: back to ready with the retry gate set,
// the failure count incremented, and the job reference and error cleared.
// Returns false when the item is no longer failed (a concurrent pass won).
func (s *Store) RequeueItem(ctx context.Context, id int64, nextRetry time.Time) (bool, error) {
	query, args, err := s.builder.
		Update("queue_items").
		Set("status", queue.StatusReady).
		Set("next_retry_at", nextRetry.UTC()).
		Set("failure_count", sq.Expr("failure_count + 1")).
		Set("job_id", nil).
		Set("error_message", nil).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": queue.StatusFailed}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build requeue update: %w", err)
	}

	res, err := s.db.ExecContext(ensureContext(ctx), query, args...)
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
	query, args, err := s.builder.
		Update("queue_items").
		Set("status", queue.StatusCancelled).
		Set("job_id", nil).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": queue.StatusFailed}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build cancel update: %w", err)
	}

	res, err := s.db.ExecContext(ensureContext(ctx), query, args...)
	if err != nil {
		return false, fmt.Errorf("cancel item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel item %d rows: %w", id, err)
	}
	return affected == 1, nil
}
