package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"docket/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "docket")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("unexpected default backend: %q", cfg.Store.Backend)
	}
	if cfg.Scheduler.PassInterval != 60 || cfg.Scheduler.RequeueInterval != 600 {
		t.Fatalf("unexpected scheduler intervals: %d/%d", cfg.Scheduler.PassInterval, cfg.Scheduler.RequeueInterval)
	}
	if cfg.Scheduler.UrgentPriority != 8 {
		t.Fatalf("unexpected urgent priority: %d", cfg.Scheduler.UrgentPriority)
	}
	if cfg.Scheduler.DefaultMaxBatchSize != 100 {
		t.Fatalf("unexpected default max batch size: %d", cfg.Scheduler.DefaultMaxBatchSize)
	}
	if !strings.HasPrefix(cfg.Scheduler.SubmittedBy, "docket@") {
		t.Fatalf("expected submitted_by to default to docket@<host>, got %q", cfg.Scheduler.SubmittedBy)
	}
	if cfg.Retry.BaseDelayMinutes != 30 || cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("unexpected retry defaults: %d/%d", cfg.Retry.BaseDelayMinutes, cfg.Retry.MaxAttempts)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, statErr := os.Stat(dir)
		if statErr != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist (err=%v)", dir, statErr)
		}
	}
	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "docket.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}

func TestLoadFileValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[store]
backend = "postgres"
postgres_dsn = "postgres://docket@localhost/docket"

[scheduler]
workers = 3
urgent_priority = 9

[portal.limits]
"US-CA" = 250
"US-NY" = 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected explicit config to resolve, exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Store.Backend != config.BackendPostgres {
		t.Fatalf("unexpected backend: %q", cfg.Store.Backend)
	}
	if cfg.Scheduler.Workers != 3 {
		t.Fatalf("unexpected workers: %d", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.UrgentPriority != 9 {
		t.Fatalf("unexpected urgent priority: %d", cfg.Scheduler.UrgentPriority)
	}
	if got := cfg.Portal.Limits["US-CA"]; got != 250 {
		t.Fatalf("unexpected US-CA limit: %d", got)
	}
	if got := cfg.Portal.Limits["US-NY"]; got != 50 {
		t.Fatalf("unexpected US-NY limit: %d", got)
	}
	// Sections the file omits keep their defaults.
	if cfg.Scheduler.PassInterval != 60 {
		t.Fatalf("expected default pass interval, got %d", cfg.Scheduler.PassInterval)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DOCKET_LOG_LEVEL", "debug")
	t.Setenv("DOCKET_SCHEDULER_WORKERS", "4")
	t.Setenv("DOCKET_MONITOR_BIND", "127.0.0.1:9000")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env override for log level, got %q", cfg.Logging.Level)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Fatalf("expected env override for workers, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Monitor.Bind != "127.0.0.1:9000" {
		t.Fatalf("expected env override for monitor bind, got %q", cfg.Monitor.Bind)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "unknown backend",
			content: "[store]\nbackend = \"oracle\"\n",
			wantSub: "store.backend",
		},
		{
			name:    "postgres without dsn",
			content: "[store]\nbackend = \"postgres\"\n",
			wantSub: "postgres_dsn",
		},
		{
			name:    "negative workers",
			content: "[scheduler]\nworkers = -1\n",
			wantSub: "scheduler.workers",
		},
		{
			name:    "zero portal limit",
			content: "[portal.limits]\n\"US-CA\" = 0\n",
			wantSub: "portal.limits",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"xml\"\n",
			wantSub: "logging.format",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected Load to fail")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.wantSub)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("sample should keep sqlite default, got %q", cfg.Store.Backend)
	}
}
