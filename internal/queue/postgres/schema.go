package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docket/internal/queue"
)

// schemaVersion must match the sqlite backend so a queue dumped from one
// backend maps onto the other without translation.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submission_jobs (
    id BIGSERIAL PRIMARY KEY,
    batch_id TEXT NOT NULL UNIQUE,
    jurisdiction TEXT NOT NULL,
    org_id TEXT NOT NULL,
    record_ids JSONB NOT NULL,
    record_count INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    submitted_by TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    error_message TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_submission_jobs_status ON submission_jobs(status);
CREATE INDEX IF NOT EXISTS idx_submission_jobs_jurisdiction ON submission_jobs(jurisdiction);

CREATE TABLE IF NOT EXISTS queue_items (
    id BIGSERIAL PRIMARY KEY,
    jurisdiction TEXT NOT NULL,
    org_id TEXT NOT NULL,
    record_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'ready',
    priority INTEGER NOT NULL DEFAULT 5,
    submission_window TEXT,
    scheduled_at TIMESTAMPTZ NOT NULL,
    job_id BIGINT REFERENCES submission_jobs(id),
    failure_count INTEGER NOT NULL DEFAULT 0,
    next_retry_at TIMESTAMPTZ,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_items_claimable ON queue_items(status, scheduled_at, priority);
CREATE INDEX IF NOT EXISTS idx_queue_items_job ON queue_items(job_id);
CREATE INDEX IF NOT EXISTS idx_queue_items_jurisdiction ON queue_items(jurisdiction, org_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// First boot against this database. The guarded insert keeps two
		// concurrently starting daemons from recording the version twice.
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO schema_version (version) SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM schema_version)",
			schemaVersion,
		)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d",
			queue.ErrSchemaMismatch, version, schemaVersion)
	}

	return nil
}
