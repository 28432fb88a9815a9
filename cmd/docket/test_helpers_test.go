package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"docket/internal/config"
	"docket/internal/daemon"
	"docket/internal/ipc"
	"docket/internal/logging"
	"docket/internal/portal"
	"docket/internal/queue/sqlite"
	"docket/internal/scheduler"
	"docket/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *sqlite.Store
	socketPath string
	configPath string
}

// setupCLITestEnv prepares a config file, an isolated HOME, and an open
// store. No daemon runs, so commands exercise their direct-store paths.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	return setupCLIEnv(t, nil)
}

type cliDaemonEnv struct {
	*cliTestEnv
	daemon *daemon.Daemon
}

// setupCLITestEnvWithDaemon additionally runs a daemon and serves its
// socket. Loop intervals are stretched so the startup pass is the only
// scheduling activity; waitForStartupPass synchronizes past it.
func setupCLITestEnvWithDaemon(t *testing.T) *cliDaemonEnv {
	t.Helper()

	env := setupCLIEnv(t, func(cfg *config.Config) {
		cfg.Scheduler.PassInterval = 3600
		cfg.Scheduler.RequeueInterval = 3600
	})

	logger := logging.NewNop()
	limits, err := portal.FromConfig(env.cfg)
	if err != nil {
		t.Fatalf("portal.FromConfig failed: %v", err)
	}
	sched := scheduler.New(env.cfg, env.store, limits, logger)
	d, err := daemon.New(env.cfg, env.store, sched, logger)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}

	serveCtx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(d, env.socketPath, cancel, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer failed: %v", err)
	}
	if err := srv.Serve(serveCtx); err != nil {
		cancel()
		t.Fatalf("ipc server Serve failed: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	waitForStartupPass(t, d)
	return &cliDaemonEnv{cliTestEnv: env, daemon: d}
}

func setupCLIEnv(t *testing.T, mutate func(*config.Config)) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}

	configPath := filepath.Join(home, ".config", "docket", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// waitForStartupPass blocks until the daemon's boot-time pass and requeue
// sweep are recorded, so tests can seed items without racing them.
func waitForStartupPass(t *testing.T, d *daemon.Daemon) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := d.Status(context.Background())
		if status.LastPass != nil && status.LastRequeue != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("daemon did not record its startup pass within 5s")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// syncBuffer guards a bytes.Buffer so a test can read command output
// while the command goroutine is still writing it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log line: %v", err)
	}
}
