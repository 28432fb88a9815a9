package daemon

import (
	"context"
	"time"

	"docket/internal/logging"
)

// passLoop drives scheduling passes at the configured interval. Workers
// beyond the first delay their first pass by a fraction of the interval so
// a multi-worker daemon spreads passes evenly instead of bunching them.
func (d *Daemon) passLoop(ctx context.Context, worker, workers int) error {
	interval := time.Duration(d.cfg.Scheduler.PassInterval) * time.Second
	if worker > 0 {
		offset := interval * time.Duration(worker) / time.Duration(workers)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(offset):
		}
	}

	d.runPassOnce(ctx, worker)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runPassOnce(ctx, worker)
		}
	}
}

func (d *Daemon) runPassOnce(ctx context.Context, worker int) {
	if ctx.Err() != nil {
		return
	}
	result := d.RunPass(ctx, "")
	if len(result.Errors) > 0 {
		d.log().Warn("scheduling pass reported errors",
			logging.Int("worker", worker),
			logging.Int("errors", len(result.Errors)))
	}
}

// requeueLoop sweeps failed items on the requeue interval. The first sweep
// runs immediately so retries overdue from before a restart are not held
// for a full interval.
func (d *Daemon) requeueLoop(ctx context.Context) error {
	interval := time.Duration(d.cfg.Scheduler.RequeueInterval) * time.Second

	d.runRequeueOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runRequeueOnce(ctx)
		}
	}
}

func (d *Daemon) runRequeueOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result := d.Requeue(ctx)
	if len(result.Errors) > 0 {
		d.log().Warn("requeue sweep reported errors",
			logging.Int("errors", len(result.Errors)))
	}
}
