package testsupport

import (
	"path/filepath"
	"testing"

	"docket/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Scheduler.SubmittedBy = "docket@test"
	cfgVal.Monitor.Bind = "127.0.0.1:0"

	builder := &configBuilder{cfg: &cfgVal}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPortalLimit sets a per-jurisdiction batch size limit on the test config.
func WithPortalLimit(jurisdiction string, limit int) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Portal.Limits == nil {
			b.cfg.Portal.Limits = map[string]int{}
		}
		b.cfg.Portal.Limits[jurisdiction] = limit
	}
}

// WithDefaultMaxBatchSize overrides the fallback batch size limit.
func WithDefaultMaxBatchSize(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.DefaultMaxBatchSize = limit
	}
}

// WithUrgentPriority overrides the urgency escalation threshold.
func WithUrgentPriority(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.UrgentPriority = threshold
	}
}

// WithMonitorToken enables bearer auth on the monitoring surface.
func WithMonitorToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Monitor.Token = token
	}
}
