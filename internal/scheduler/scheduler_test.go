package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/portal"
	"docket/internal/queue"
	"docket/internal/queue/sqlite"
	"docket/internal/scheduler"
	"docket/internal/testsupport"
)

func newTestScheduler(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, *sqlite.Store, *scheduler.Scheduler) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	limits, err := portal.FromConfig(cfg)
	if err != nil {
		t.Fatalf("portal.FromConfig: %v", err)
	}
	return cfg, store, scheduler.New(cfg, store, limits, logging.NewNop())
}

func enqueueBacklog(t *testing.T, store queue.Store, n int, jurisdiction, orgID, window string, priority int) {
	t.Helper()
	for i := 0; i < n; i++ {
		testsupport.Enqueue(t, store, queue.NewItemParams{
			Jurisdiction: jurisdiction,
			OrgID:        orgID,
			RecordID:     fmt.Sprintf("%s-%s-rec-%04d", jurisdiction, orgID, i),
			Priority:     priority,
			Window:       window,
		})
	}
}

func TestRunSchedulingPassSplitsOversizeGroup(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	enqueueBacklog(t, store, 250, "US-CA", "acme", "2026-Q1", 0)

	result := sched.RunSchedulingPass(ctx, "")
	if len(result.Errors) != 0 {
		t.Fatalf("pass errors: %v", result.Errors)
	}
	if result.UrgentProcessed != 0 || result.UrgentJobsCreated != 0 {
		t.Fatalf("urgent = %d/%d, want 0/0", result.UrgentProcessed, result.UrgentJobsCreated)
	}
	if result.GroupsFound != 1 {
		t.Fatalf("groups = %d, want 1", result.GroupsFound)
	}
	if result.BatchesCreated != 3 || result.JobsCreated != 3 || len(result.JobIDs) != 3 {
		t.Fatalf("batches=%d jobs=%d ids=%d, want 3/3/3", result.BatchesCreated, result.JobsCreated, len(result.JobIDs))
	}

	wantSizes := []int{100, 100, 50}
	for i, jobID := range result.JobIDs {
		job, err := store.JobByID(ctx, jobID)
		if err != nil {
			t.Fatalf("JobByID(%d): %v", jobID, err)
		}
		if job.RecordCount != wantSizes[i] || len(job.RecordIDs) != wantSizes[i] {
			t.Fatalf("job %d count = %d (%d ids), want %d", jobID, job.RecordCount, len(job.RecordIDs), wantSizes[i])
		}
		if job.Status != queue.JobPending {
			t.Fatalf("job %d status = %s, want pending", jobID, job.Status)
		}
		if job.Jurisdiction != "US-CA" || job.OrgID != "acme" {
			t.Fatalf("job %d coordinates = %s/%s", jobID, job.Jurisdiction, job.OrgID)
		}
		if job.SubmittedBy != "docket@test" {
			t.Fatalf("job %d submitted by %q", jobID, job.SubmittedBy)
		}
		if job.BatchID == "" {
			t.Fatalf("job %d has no batch id", jobID)
		}
	}

	queued, err := store.ListItems(ctx, queue.ItemFilter{Statuses: []queue.Status{queue.StatusQueued}})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(queued) != 250 {
		t.Fatalf("queued items = %d, want 250", len(queued))
	}
	for _, item := range queued {
		if item.JobID == nil {
			t.Fatalf("item %d queued without job reference", item.ID)
		}
	}
}

func TestRunSchedulingPassUrgentBypass(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	enqueueBacklog(t, store, 500, "US-CA", "acme", "2026-Q1", 2)
	urgent := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA",
		OrgID:        "acme",
		RecordID:     "rec-urgent",
		Priority:     9,
		Window:       "2026-Q1",
	})

	result := sched.RunSchedulingPass(ctx, "")
	if len(result.Errors) != 0 {
		t.Fatalf("pass errors: %v", result.Errors)
	}
	if result.UrgentProcessed != 1 || result.UrgentJobsCreated != 1 {
		t.Fatalf("urgent = %d/%d, want 1/1", result.UrgentProcessed, result.UrgentJobsCreated)
	}
	if result.GroupsFound != 1 || result.BatchesCreated != 5 {
		t.Fatalf("groups=%d batches=%d, want 1/5", result.GroupsFound, result.BatchesCreated)
	}
	if result.JobsCreated != 6 {
		t.Fatalf("jobs = %d, want 6", result.JobsCreated)
	}

	urgentJob, err := store.JobByID(ctx, result.JobIDs[0])
	if err != nil {
		t.Fatalf("JobByID: %v", err)
	}
	if urgentJob.RecordCount != 1 || urgentJob.RecordIDs[0] != "rec-urgent" {
		t.Fatalf("urgent job = %d records (%v), want the single urgent record", urgentJob.RecordCount, urgentJob.RecordIDs)
	}
	for _, jobID := range result.JobIDs[1:] {
		if jobID <= urgentJob.ID {
			t.Fatalf("grouped job %d created before urgent job %d", jobID, urgentJob.ID)
		}
	}

	claimed, err := store.ItemByID(ctx, urgent.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if claimed.Status != queue.StatusQueued || claimed.JobID == nil || *claimed.JobID != urgentJob.ID {
		t.Fatalf("urgent item = %s (job %v), want queued into job %d", claimed.Status, claimed.JobID, urgentJob.ID)
	}
}

func TestRunSchedulingPassHonorsPortalLimits(t *testing.T) {
	_, store, sched := newTestScheduler(t, testsupport.WithPortalLimit("US-CA", 2))
	ctx := context.Background()
	enqueueBacklog(t, store, 5, "US-CA", "acme", "2026-Q1", 0)
	enqueueBacklog(t, store, 3, "US-NY", "acme", "2026-Q1", 0)

	result := sched.RunSchedulingPass(ctx, "")
	if len(result.Errors) != 0 {
		t.Fatalf("pass errors: %v", result.Errors)
	}
	if result.GroupsFound != 2 {
		t.Fatalf("groups = %d, want 2", result.GroupsFound)
	}
	if result.BatchesCreated != 4 || result.JobsCreated != 4 {
		t.Fatalf("batches=%d jobs=%d, want 4/4", result.BatchesCreated, result.JobsCreated)
	}

	jobs, err := store.ListJobs(ctx, queue.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	for _, job := range jobs {
		switch job.Jurisdiction {
		case "US-CA":
			if job.RecordCount > 2 {
				t.Fatalf("US-CA job %d has %d records, limit is 2", job.ID, job.RecordCount)
			}
		case "US-NY":
			if job.RecordCount != 3 {
				t.Fatalf("US-NY job %d has %d records, want 3", job.ID, job.RecordCount)
			}
		default:
			t.Fatalf("unexpected jurisdiction %s", job.Jurisdiction)
		}
	}
}

func TestRunSchedulingPassSkipsIneligibleItems(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	ready := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-ready", Window: "2026-Q1",
	})
	held := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-held", Window: "2026-Q1", Hold: true,
	})
	future := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-future", Window: "2026-Q1",
		ScheduledAt: time.Now().UTC().Add(time.Hour),
	})

	first := sched.RunSchedulingPass(ctx, "")
	if first.JobsCreated != 1 {
		t.Fatalf("first pass jobs = %d, want 1", first.JobsCreated)
	}

	claimed, err := store.ItemByID(ctx, ready.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if claimed.Status != queue.StatusQueued {
		t.Fatalf("ready item = %s, want queued", claimed.Status)
	}
	for _, tc := range []struct {
		id   int64
		want queue.Status
	}{
		{held.ID, queue.StatusPendingValidation},
		{future.ID, queue.StatusReady},
	} {
		item, err := store.ItemByID(ctx, tc.id)
		if err != nil {
			t.Fatalf("ItemByID(%d): %v", tc.id, err)
		}
		if item.Status != tc.want || item.JobID != nil {
			t.Fatalf("item %d = %s (job %v), want untouched %s", tc.id, item.Status, item.JobID, tc.want)
		}
	}

	released, err := store.MarkValidated(ctx)
	if err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	second := sched.RunSchedulingPass(ctx, "")
	if second.JobsCreated != 1 {
		t.Fatalf("second pass jobs = %d, want 1", second.JobsCreated)
	}
	approved, err := store.ItemByID(ctx, held.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if approved.Status != queue.StatusQueued {
		t.Fatalf("approved item = %s, want queued", approved.Status)
	}
}

// urgentErrStore simulates a store outage on the urgent selection only.
type urgentErrStore struct {
	queue.Store
}

func (s urgentErrStore) UrgentItems(ctx context.Context, now time.Time, minPriority int) ([]*queue.Item, error) {
	return nil, errors.New("store offline")
}

func TestRunSchedulingPassAccumulatesErrors(t *testing.T) {
	cfg, store, _ := newTestScheduler(t)
	ctx := context.Background()
	limits, err := portal.FromConfig(cfg)
	if err != nil {
		t.Fatalf("portal.FromConfig: %v", err)
	}
	sched := scheduler.New(cfg, urgentErrStore{Store: store}, limits, logging.NewNop())
	enqueueBacklog(t, store, 3, "US-CA", "acme", "2026-Q1", 0)

	result := sched.RunSchedulingPass(ctx, "")
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "select urgent items") {
		t.Fatalf("errors = %v, want one urgent selection failure", result.Errors)
	}
	if result.JobsCreated != 1 {
		t.Fatalf("jobs = %d, want grouped path to continue past the failure", result.JobsCreated)
	}
}

func failItemOnce(t *testing.T, store queue.Store, item *queue.Item, attempt int) {
	t.Helper()
	ctx := context.Background()
	job, err := store.ClaimBatch(ctx, queue.ClaimRequest{
		BatchID:      fmt.Sprintf("retry-cycle-%d", attempt),
		Jurisdiction: item.Jurisdiction,
		OrgID:        item.OrgID,
		SubmittedBy:  "docket@test",
		ItemIDs:      []int64{item.ID},
		RecordIDs:    []string{item.RecordID},
	})
	if err != nil {
		t.Fatalf("claim attempt %d: %v", attempt, err)
	}
	if err := store.FailJob(ctx, job.ID, "portal rejected submission"); err != nil {
		t.Fatalf("fail job attempt %d: %v", attempt, err)
	}
}

func TestRequeueFailuresBackoffSchedule(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	item := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-retry", Window: "2026-Q1",
	})

	base := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	delays := []time.Duration{30 * time.Minute, 60 * time.Minute, 120 * time.Minute, 240 * time.Minute, 480 * time.Minute}
	for k, delay := range delays {
		failItemOnce(t, store, item, k)

		now := base.Add(time.Duration(k) * 24 * time.Hour)
		result := sched.RequeueFailures(ctx, now)
		if len(result.Errors) != 0 {
			t.Fatalf("attempt %d errors: %v", k, result.Errors)
		}
		if result.Requeued != 1 || result.Cancelled != 0 {
			t.Fatalf("attempt %d: requeued=%d cancelled=%d, want 1/0", k, result.Requeued, result.Cancelled)
		}

		got, err := store.ItemByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("ItemByID: %v", err)
		}
		if got.Status != queue.StatusReady {
			t.Fatalf("attempt %d: status = %s, want ready", k, got.Status)
		}
		if got.FailureCount != k+1 {
			t.Fatalf("attempt %d: failure count = %d, want %d", k, got.FailureCount, k+1)
		}
		if got.JobID != nil {
			t.Fatalf("attempt %d: job reference not cleared", k)
		}
		if got.ErrorMessage != "" {
			t.Fatalf("attempt %d: error message not cleared: %q", k, got.ErrorMessage)
		}
		want := now.Add(delay)
		if got.NextRetryAt == nil || !got.NextRetryAt.Equal(want) {
			t.Fatalf("attempt %d: next retry = %v, want %v", k, got.NextRetryAt, want)
		}
	}

	// The sixth failure hits the attempt ceiling.
	failItemOnce(t, store, item, len(delays))
	result := sched.RequeueFailures(ctx, base.Add(30*24*time.Hour))
	if result.Cancelled != 1 || result.Requeued != 0 {
		t.Fatalf("final pass: requeued=%d cancelled=%d, want 0/1", result.Requeued, result.Cancelled)
	}

	got, err := store.ItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if got.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.FailureCount != 5 {
		t.Fatalf("failure count = %d, want 5", got.FailureCount)
	}
	if got.JobID != nil {
		t.Fatal("cancelled item should not reference an abandoned job")
	}
	if got.ErrorMessage == "" {
		t.Fatal("cancelled item should keep its final error for the audit trail")
	}
}

func TestRequeuedItemWaitsOutRetryGate(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	item := testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-gated", Window: "2026-Q1",
	})
	failItemOnce(t, store, item, 0)

	requeue := sched.RequeueFailures(ctx, time.Now().UTC())
	if requeue.Requeued != 1 {
		t.Fatalf("requeued = %d, want 1", requeue.Requeued)
	}

	pass := sched.RunSchedulingPass(ctx, "")
	if pass.JobsCreated != 0 {
		t.Fatalf("gated item was claimed: %+v", pass)
	}

	got, err := store.ItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if got.Status != queue.StatusReady {
		t.Fatalf("status = %s, want ready behind its retry gate", got.Status)
	}
}

func TestConcurrentPassesClaimEveryItemExactlyOnce(t *testing.T) {
	cfg, store, _ := newTestScheduler(t, testsupport.WithDefaultMaxBatchSize(50))
	ctx := context.Background()
	limits, err := portal.FromConfig(cfg)
	if err != nil {
		t.Fatalf("portal.FromConfig: %v", err)
	}
	enqueueBacklog(t, store, 120, "US-CA", "acme", "2026-Q1", 0)

	results := make([]*scheduler.PassResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			worker := scheduler.New(cfg, store, limits, logging.NewNop())
			results[i] = worker.RunSchedulingPass(ctx, fmt.Sprintf("worker-%d", i))
		}(i)
	}
	wg.Wait()

	queued, err := store.ListItems(ctx, queue.ItemFilter{Statuses: []queue.Status{queue.StatusQueued}})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(queued) != 120 {
		t.Fatalf("queued items = %d, want 120", len(queued))
	}

	jobs, err := store.ListJobs(ctx, queue.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	total := 0
	claimedBy := make(map[string]int64)
	for _, job := range jobs {
		total += job.RecordCount
		if job.RecordCount != len(job.RecordIDs) {
			t.Fatalf("job %d count %d != %d record ids", job.ID, job.RecordCount, len(job.RecordIDs))
		}
		for _, record := range job.RecordIDs {
			if prior, ok := claimedBy[record]; ok {
				t.Fatalf("record %s claimed by jobs %d and %d", record, prior, job.ID)
			}
			claimedBy[record] = job.ID
		}
	}
	if total != 120 {
		t.Fatalf("jobs cover %d records, want 120", total)
	}
	if created := results[0].JobsCreated + results[1].JobsCreated; created != len(jobs) {
		t.Fatalf("passes report %d jobs, store has %d", created, len(jobs))
	}
}

func TestQueueStatisticsDelegates(t *testing.T) {
	_, store, sched := newTestScheduler(t)
	ctx := context.Background()
	enqueueBacklog(t, store, 2, "US-CA", "acme", "2026-Q1", 0)
	testsupport.Enqueue(t, store, queue.NewItemParams{
		Jurisdiction: "US-NY", OrgID: "acme", RecordID: "rec-urgent", Priority: 9, Window: "2026-Q1",
	})

	stats, err := sched.QueueStatistics(ctx)
	if err != nil {
		t.Fatalf("QueueStatistics: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[queue.StatusReady] != 3 {
		t.Fatalf("ready = %d, want 3", stats.ByStatus[queue.StatusReady])
	}
	if stats.UrgentCount != 1 {
		t.Fatalf("urgent = %d, want 1", stats.UrgentCount)
	}
	if stats.ByJurisdiction["US-NY"] != 1 {
		t.Fatalf("US-NY = %d, want 1", stats.ByJurisdiction["US-NY"])
	}
}
