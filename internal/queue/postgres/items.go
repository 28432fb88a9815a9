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

// Enqueue inserts a new pending filing obligation.
func (s *Store) Enqueue(ctx context.Context, params queue.NewItemParams) (*queue.Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	priority := params.Priority
	if priority == 0 {
		priority = queue.DefaultPriority
	}
	scheduled := params.ScheduledAt.UTC()
	if params.ScheduledAt.IsZero() {
		scheduled = now
	}
	status := queue.StatusReady
	if params.Hold {
		status = queue.StatusPendingValidation
	}

	query, args, err := s.builder.
		Insert("queue_items").
		Columns("jurisdiction", "org_id", "record_id", "status", "priority",
			"submission_window", "scheduled_at", "created_at", "updated_at").
		Values(params.Jurisdiction, params.OrgID, params.RecordID, status, priority,
			nullableString(params.Window), scheduled, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item insert: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return s.ItemByID(ctx, id)
}

// ItemByID fetches a queue item by identifier.
func (s *Store) ItemByID(ctx context.Context, id int64) (*queue.Item, error) {
	query, args, err := s.builder.
		Select(itemColumns...).
		From("queue_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	row := s.db.QueryRowContext(ensureContext(ctx), query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, queue.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching the filter, newest first.
func (s *Store) ListItems(ctx context.Context, filter queue.ItemFilter) ([]*queue.Item, error) {
	builder := s.builder.
		Select(itemColumns...).
		From("queue_items").
		OrderBy("id DESC")
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.Jurisdiction != "" {
		builder = builder.Where(sq.Eq{"jurisdiction": filter.Jurisdiction})
	}
	if filter.OrgID != "" {
		builder = builder.Where(sq.Eq{"org_id": filter.OrgID})
	}
	if filter.RecordID != "" {
		builder = builder.Where(sq.Eq{"record_id": filter.RecordID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return s.selectItems(ctx, builder)
}

// UrgentItems returns claimable items at or above minPriority, most urgent
// first.
func (s *Store) UrgentItems(ctx context.Context, now time.Time, minPriority int) ([]*queue.Item, error) {
	return s.selectItems(ctx, s.builder.
		Select(itemColumns...).
		From("queue_items").
		Where(claimable(now)).
		Where(sq.GtOrEq{"priority": minPriority}).
		OrderBy("priority DESC", "scheduled_at ASC", "id ASC"))
}

// GroupableItems returns claimable items below belowPriority ordered by group
// key so the grouping pass is deterministic. NULLS FIRST keeps windowless
// items ordered the same way the sqlite backend orders them.
func (s *Store) GroupableItems(ctx context.Context, now time.Time, belowPriority int) ([]*queue.Item, error) {
	return s.selectItems(ctx, s.builder.
		Select(itemColumns...).
		From("queue_items").
		Where(claimable(now)).
		Where(sq.Lt{"priority": belowPriority}).
		OrderBy("jurisdiction ASC", "org_id ASC", "submission_window ASC NULLS FIRST",
			"priority DESC", "scheduled_at ASC", "id ASC"))
}

// FailedDue returns failed items whose retry gate has passed. Items without a
// next-retry time are due immediately.
func (s *Store) FailedDue(ctx context.Context, now time.Time) ([]*queue.Item, error) {
	return s.selectItems(ctx, s.builder.
		Select(itemColumns...).
		From("queue_items").
		Where(sq.Eq{"status": queue.StatusFailed}).
		Where(sq.Or{
			sq.Eq{"next_retry_at": nil},
			sq.LtOrEq{"next_retry_at": now.UTC()},
		}).
		OrderBy("id ASC"))
}
