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
	scheduled := params.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}
	status := queue.StatusReady
	if params.Hold {
		status = queue.StatusPendingValidation
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            jurisdiction, org_id, record_id, status, priority,
            submission_window, scheduled_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.Jurisdiction,
		params.OrgID,
		params.RecordID,
		status,
		priority,
		nullableString(params.Window),
		formatTime(scheduled),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.ItemByID(ctx, id)
}

// ItemByID fetches a queue item by identifier.
func (s *Store) ItemByID(ctx context.Context, id int64) (*queue.Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
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
	if filter.OrgID != "" {
		conditions = append(conditions, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.RecordID != "" {
		conditions = append(conditions, "record_id = ?")
		args = append(args, filter.RecordID)
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryItems(ctx, query, args...)
}

// claimableWhere is the predicate shared by the scheduling selections: ready,
// unassigned, past its scheduled time, and past any retry gate.
const claimableWhere = `status = ? AND job_id IS NULL AND scheduled_at <= ? AND (next_retry_at IS NULL OR next_retry_at <= ?)`

// UrgentItems returns claimable items at or above minPriority, most urgent
// first.
func (s *Store) UrgentItems(ctx context.Context, now time.Time, minPriority int) ([]*queue.Item, error) {
	stamp := formatTime(now)
	return s.queryItems(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE `+claimableWhere+` AND priority >= ?
         ORDER BY priority DESC, scheduled_at ASC, id ASC`,
		queue.StatusReady, stamp, stamp, minPriority,
	)
}

// GroupableItems returns claimable items below belowPriority ordered by group
// key so the grouping pass is deterministic.
func (s *Store) GroupableItems(ctx context.Context, now time.Time, belowPriority int) ([]*queue.Item, error) {
	stamp := formatTime(now)
	return s.queryItems(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE `+claimableWhere+` AND priority < ?
         ORDER BY jurisdiction ASC, org_id ASC, submission_window ASC, priority DESC, scheduled_at ASC, id ASC`,
		queue.StatusReady, stamp, stamp, belowPriority,
	)
}

// FailedDue returns failed items whose retry gate has passed. Items without a
// next-retry time are due immediately.
func (s *Store) FailedDue(ctx context.Context, now time.Time) ([]*queue.Item, error) {
	return s.queryItems(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY id ASC`,
		queue.StatusFailed, formatTime(now),
	)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*queue.Item, error) {
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
