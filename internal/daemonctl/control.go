// Package daemonctl orchestrates the daemon process from the CLI side:
// launching docketd detached, waiting for its socket, asking it to stop,
// and assembling a status view that degrades to direct store reads when
// no daemon is running.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"docket/internal/api"
	"docket/internal/config"
	"docket/internal/ipc"
	"docket/internal/queue/backends"
)

// ErrDaemonNotRunning indicates the daemon socket is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls how the daemon process is spawned.
type LaunchOptions struct {
	// ConfigPath is forwarded as --config so the daemon loads the same file
	// the CLI did.
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures what EnsureStarted did.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch spawns a detached docketd process and releases it.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("launch daemon: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient polls the socket until a connection succeeds or timeout
// elapses, returning the connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted connects to a running daemon or launches one and waits for
// it to come up.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		status, statusErr := client.Status()
		client.Close()
		if statusErr != nil {
			return StartResult{}, fmt.Errorf("daemon socket answered but status failed: %w", statusErr)
		}
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("daemon started but status failed: %w", err)
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// StopDaemon asks a running daemon to shut down and waits up to gracePeriod
// for its socket to disappear. Returns the daemon PID when known.
func StopDaemon(socketPath string, gracePeriod time.Duration) (int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return 0, ErrDaemonNotRunning
		}
		return 0, err
	}

	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.PID
	}
	stopping, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return pid, err
	}
	if !stopping {
		return pid, errors.New("daemon rejected stop request")
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err != nil {
		return pid, err
	}
	return pid, nil
}

// WaitForShutdown polls until the daemon socket stops answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			lastErr = err
		} else {
			_ = client.Close()
			lastErr = errors.New("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo reports whether the daemon socket answers and the PID when it
// does.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// BuildStatusSnapshot returns the live daemon status when the socket
// answers; otherwise an offline view with statistics read straight from
// the store.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}

	if client, err := ipc.Dial(socketPath); err == nil {
		status, statusErr := client.Status()
		client.Close()
		if statusErr == nil {
			return status, nil
		}
	}

	status := api.DaemonStatus{
		Backend:      cfg.Store.Backend,
		LockFilePath: cfg.LockPath(),
		SocketPath:   socketPath,
	}
	if cfg.Store.Backend == config.BackendSQLite {
		status.DatabasePath = cfg.DatabasePath()
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := backends.Open(cfg)
	if err != nil {
		return status, nil
	}
	defer store.Close()
	stats, err := store.Statistics(queryCtx, cfg.Scheduler.UrgentPriority)
	if err != nil {
		return status, nil
	}
	status.Statistics = api.FromStatistics(stats)
	return status, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
