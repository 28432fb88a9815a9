package sqlite

import (
	"context"
	"fmt"
	"time"

	"docket/internal/queue"
)

// Statistics aggregates the whole queue from one read transaction so every
// count reflects the same snapshot.
func (s *Store) Statistics(ctx context.Context, urgentPriority int) (*queue.Statistics, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stats tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := &queue.Statistics{
		ByStatus:       make(map[queue.Status]int),
		ByJurisdiction: make(map[string]int),
		ByPriority:     make(map[string]int),
		GeneratedAt:    time.Now().UTC(),
	}

	rows, err := tx.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[queue.Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	rows.Close()

	rows, err = tx.QueryContext(ctx, `SELECT jurisdiction, COUNT(1) FROM queue_items GROUP BY jurisdiction`)
	if err != nil {
		return nil, fmt.Errorf("count by jurisdiction: %w", err)
	}
	for rows.Next() {
		var (
			jurisdiction string
			count        int
		)
		if err := rows.Scan(&jurisdiction, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan jurisdiction count: %w", err)
		}
		stats.ByJurisdiction[jurisdiction] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate jurisdiction counts: %w", err)
	}
	rows.Close()

	rows, err = tx.QueryContext(ctx, `SELECT priority, COUNT(1) FROM queue_items GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	for rows.Next() {
		var (
			priority int
			count    int
		)
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		stats.ByPriority[queue.PriorityBucket(priority)] += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate priority counts: %w", err)
	}
	rows.Close()

	err = tx.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_items WHERE priority >= ? AND status NOT IN (?, ?)`,
		urgentPriority, queue.StatusSubmitted, queue.StatusCancelled,
	).Scan(&stats.UrgentCount)
	if err != nil {
		return nil, fmt.Errorf("count outstanding urgent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stats tx: %w", err)
	}
	return stats, nil
}
