package testsupport

import (
	"context"
	"testing"

	"docket/internal/config"
	"docket/internal/queue"
	"docket/internal/queue/sqlite"
)

// MustOpenStore opens a SQLite-backed queue store for tests and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(cfg)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue inserts a queue item for tests using the provided store.
func Enqueue(t testing.TB, store queue.Store, params queue.NewItemParams) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), params)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
