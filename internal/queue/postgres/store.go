package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"docket/internal/config"
	"docket/internal/queue"
)

// Store persists the submission queue in PostgreSQL.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ queue.Store = (*Store)(nil)

const (
	// Postgres aborts one side of a deadlock or serialization conflict and
	// expects the client to retry the transaction.
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"

	conflictRetryInitialBackoff = 10 * time.Millisecond
	conflictRetryMaxBackoff     = 200 * time.Millisecond
	conflictRetryMaxElapsed     = 2 * time.Second
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
}

// runWithRetry retries op when Postgres aborted it to resolve a deadlock or
// serialization conflict. Any other error is permanent and returned as-is.
func (s *Store) runWithRetry(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = conflictRetryInitialBackoff
	policy.MaxInterval = conflictRetryMaxBackoff
	policy.MaxElapsedTime = conflictRetryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryableConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// Open connects to the queue database named by the store configuration.
func Open(cfg *config.Config) (*Store, error) {
	if cfg.Store.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres backend requires store.postgres_dsn")
	}
	return OpenDSN(cfg.Store.PostgresDSN)
}

// OpenDSN connects with an explicit connection string, verifies the server is
// reachable, and initializes the schema.
func OpenDSN(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	store := &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
