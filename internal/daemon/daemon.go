package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/scheduler"
)

// Daemon owns the background loops of a docketd process. One instance per
// data directory: Start takes a file lock and fails when another process
// holds it. All loops run under a single errgroup cancelled by Stop.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   queue.Store
	sched   *scheduler.Scheduler
	lock    *flock.Flock
	monitor *monitorServer

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	mu            sync.RWMutex
	startedAt     time.Time
	lastPass      *scheduler.PassResult
	lastPassAt    time.Time
	lastRequeue   *scheduler.RequeueResult
	lastRequeueAt time.Time
}

// Status is a point-in-time view of the daemon for the status command and
// the monitor. Statistics is nil when the store could not be reached.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	Backend       string
	DatabasePath  string
	LockFilePath  string
	SocketPath    string
	LastPass      *scheduler.PassResult
	LastPassAt    time.Time
	LastRequeue   *scheduler.RequeueResult
	LastRequeueAt time.Time
	Statistics    *queue.Statistics
}

// New wires a daemon around an open store and a scheduler. The store stays
// open until Close.
func New(cfg *config.Config, store queue.Store, sched *scheduler.Scheduler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon: config is required")
	}
	if store == nil {
		return nil, errors.New("daemon: store is required")
	}
	if sched == nil {
		return nil, errors.New("daemon: scheduler is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		store:  store,
		sched:  sched,
		lock:   flock.New(cfg.LockPath()),
	}
	d.monitor = newMonitorServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and launches the pass loops, the requeue
// loop, and the monitor server. It returns once everything is running;
// loops keep going until Stop or ctx cancellation.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already started")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("acquire lock %s: %w", d.cfg.LockPath(), err)
	}
	if !locked {
		d.running.Store(false)
		return fmt.Errorf("another docketd instance holds %s", d.cfg.LockPath())
	}

	if d.monitor != nil {
		if err := d.monitor.listen(); err != nil {
			d.releaseLock()
			d.running.Store(false)
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	d.cancel = cancel
	d.group = group
	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()

	workers := d.cfg.Scheduler.Workers
	if workers < 1 {
		workers = 1
	}
	for worker := 0; worker < workers; worker++ {
		group.Go(func() error { return d.passLoop(groupCtx, worker, workers) })
	}
	group.Go(func() error { return d.requeueLoop(groupCtx) })
	if d.monitor != nil {
		group.Go(func() error { return d.monitor.run(groupCtx) })
	}

	d.log().Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String(logging.FieldBackend, d.cfg.Store.Backend),
		logging.Int("workers", workers),
		logging.String("lock", d.cfg.LockPath()))
	return nil
}

// Stop cancels the loops, waits for them to drain, and releases the lock.
// Safe to call more than once.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.log().Warn("daemon loop exited with error", logging.Error(err))
		}
	}
	d.releaseLock()
	d.log().Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not yet run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// MonitorAddr returns the bound monitor address, or "" when the monitor is
// disabled or not started.
func (d *Daemon) MonitorAddr() string {
	if d.monitor == nil {
		return ""
	}
	return d.monitor.addr()
}

// LogFilePath returns where this daemon writes its log file.
func (d *Daemon) LogFilePath() string {
	return d.cfg.LogFilePath()
}

// RunPass executes one scheduling pass and records its summary for Status.
// submittedBy overrides the configured submitter identity when non-empty.
func (d *Daemon) RunPass(ctx context.Context, submittedBy string) *scheduler.PassResult {
	result := d.sched.RunSchedulingPass(ctx, submittedBy)
	d.mu.Lock()
	d.lastPass = result
	d.lastPassAt = time.Now().UTC()
	d.mu.Unlock()
	return result
}

// Requeue executes one retry sweep and records its summary for Status.
func (d *Daemon) Requeue(ctx context.Context) *scheduler.RequeueResult {
	result := d.sched.RequeueFailures(ctx, time.Now().UTC())
	d.mu.Lock()
	d.lastRequeue = result
	d.lastRequeueAt = time.Now().UTC()
	d.mu.Unlock()
	return result
}

// PingStore verifies the backing database is reachable.
func (d *Daemon) PingStore(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// Status assembles the daemon view, including a fresh statistics snapshot.
// A store failure leaves Statistics nil rather than failing the call.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Backend:      d.cfg.Store.Backend,
		LockFilePath: d.cfg.LockPath(),
		SocketPath:   d.cfg.SocketPath(),
	}
	if d.cfg.Store.Backend == config.BackendSQLite {
		status.DatabasePath = d.cfg.DatabasePath()
	}

	d.mu.RLock()
	status.StartedAt = d.startedAt
	status.LastPass = d.lastPass
	status.LastPassAt = d.lastPassAt
	status.LastRequeue = d.lastRequeue
	status.LastRequeueAt = d.lastRequeueAt
	d.mu.RUnlock()

	stats, err := d.sched.QueueStatistics(ctx)
	if err != nil {
		d.log().Warn("statistics unavailable", logging.Error(err))
	} else {
		status.Statistics = stats
	}
	return status
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.log().Warn("release lock", logging.Error(err))
	}
}

func (d *Daemon) log() *slog.Logger {
	return logging.NewComponentLogger(d.logger, "daemon")
}
