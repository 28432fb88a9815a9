// Package backends opens the queue store implementation the configuration
// names. It exists so the daemon, the control helpers, and the CLI share
// one selection point.
package backends

import (
	"fmt"

	"docket/internal/config"
	"docket/internal/queue"
	"docket/internal/queue/postgres"
	"docket/internal/queue/sqlite"
)

// Open returns a ready store for cfg's backend. The caller owns Close.
func Open(cfg *config.Config) (queue.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return postgres.Open(cfg)
	case config.BackendSQLite, "":
		return sqlite.Open(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
