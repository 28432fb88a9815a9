// Package daemonrun boots a complete docketd process: logging, PID file,
// store, scheduler, daemon loops, and the IPC socket. It exists so the
// docketd binary stays a thin main.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"docket/internal/config"
	"docket/internal/daemon"
	"docket/internal/ipc"
	"docket/internal/logging"
	"docket/internal/portal"
	"docket/internal/queue/backends"
	"docket/internal/scheduler"
)

// Run blocks until the context is cancelled, SIGINT/SIGTERM arrives, or the
// Stop RPC fires. It returns nil on a clean shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("docketd: config is required")
	}
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.NewComponentLogger(logger, "docketd")

	pidPath := cfg.PIDPath()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := backends.Open(cfg)
	if err != nil {
		return err
	}

	limits, err := portal.FromConfig(cfg)
	if err != nil {
		store.Close()
		return err
	}

	sched := scheduler.New(cfg, store, limits, logger)
	d, err := daemon.New(cfg, store, sched, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer d.Close()

	// The Stop RPC cancels the same context the signals do.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Take the instance lock before binding the socket: a second docketd
	// must fail here, not clobber the live daemon's socket file.
	if err := d.Start(runCtx); err != nil {
		return err
	}

	srv, err := ipc.NewServer(d, cfg.SocketPath(), cancel, logger)
	if err != nil {
		return err
	}
	if err := srv.Serve(runCtx); err != nil {
		return err
	}
	defer srv.Close()

	log.Info("docketd ready",
		logging.Int("pid", os.Getpid()),
		logging.String("socket", cfg.SocketPath()),
		logging.String("monitor", d.MonitorAddr()),
		logging.String(logging.FieldBackend, cfg.Store.Backend))

	<-runCtx.Done()
	log.Info("docketd shutting down")
	return nil
}
