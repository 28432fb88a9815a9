package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"docket/internal/queue"
)

// Statistics aggregates the whole queue from one REPEATABLE READ transaction
// so every count reflects the same snapshot.
func (s *Store) Statistics(ctx context.Context, urgentPriority int) (*queue.Statistics, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
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

	statusCounts, err := groupCounts(ctx, tx, s.builder.
		Select("status", "COUNT(1)").
		From("queue_items").
		GroupBy("status"))
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for status, count := range statusCounts {
		stats.ByStatus[queue.Status(status)] = count
		stats.Total += count
	}

	jurisdictionCounts, err := groupCounts(ctx, tx, s.builder.
		Select("jurisdiction", "COUNT(1)").
		From("queue_items").
		GroupBy("jurisdiction"))
	if err != nil {
		return nil, fmt.Errorf("count by jurisdiction: %w", err)
	}
	for jurisdiction, count := range jurisdictionCounts {
		stats.ByJurisdiction[jurisdiction] = count
	}

	if err := s.countPriorities(ctx, tx, stats); err != nil {
		return nil, err
	}

	urgentQuery, urgentArgs, err := s.builder.
		Select("COUNT(1)").
		From("queue_items").
		Where(sq.GtOrEq{"priority": urgentPriority}).
		Where(sq.NotEq{"status": []queue.Status{queue.StatusSubmitted, queue.StatusCancelled}}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build urgent count: %w", err)
	}
	if err := tx.QueryRowContext(ctx, urgentQuery, urgentArgs...).Scan(&stats.UrgentCount); err != nil {
		return nil, fmt.Errorf("count outstanding urgent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stats tx: %w", err)
	}
	return stats, nil
}

func (s *Store) countPriorities(ctx context.Context, tx *sql.Tx, stats *queue.Statistics) error {
	query, args, err := s.builder.
		Select("priority", "COUNT(1)").
		From("queue_items").
		GroupBy("priority").
		ToSql()
	if err != nil {
		return fmt.Errorf("build priority count: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("count by priority: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var priority, count int
		if err := rows.Scan(&priority, &count); err != nil {
			return fmt.Errorf("scan priority count: %w", err)
		}
		stats.ByPriority[queue.PriorityBucket(priority)] += count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate priority counts: %w", err)
	}
	return nil
}

func groupCounts(ctx context.Context, tx *sql.Tx, builder sq.SelectBuilder) (map[string]int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
