package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"docket/internal/queue"
	"docket/internal/testsupport"
)

func TestQueueAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "rec-1", "rec-2", "--jurisdiction", "US-CA", "--org", "acme", "--window", "2026-Q3"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add failed: %v", err)
	}
	requireContains(t, out, "Enqueued item 1 (rec-1)")
	requireContains(t, out, "Enqueued item 2 (rec-2)")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	requireContains(t, out, "rec-1")
	requireContains(t, out, "rec-2")
	requireContains(t, out, "US-CA")
	requireContains(t, out, "Ready")
	requireContains(t, out, "2026-Q3")

	out, _, err = runCLI(t, []string{"queue", "list", "--record", "rec-2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --record failed: %v", err)
	}
	requireContains(t, out, "rec-2")
	if strings.Contains(out, "rec-1") {
		t.Fatalf("expected record filter to drop other records, got:\n%s", out)
	}
}

func TestQueueListStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-ready"})
	testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-held", Hold: true})

	out, _, err := runCLI(t, []string{"queue", "list", "--status", "pending_validation"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --status failed: %v", err)
	}
	requireContains(t, out, "rec-held")
	if strings.Contains(out, "rec-ready") {
		t.Fatalf("expected status filter to drop ready items, got:\n%s", out)
	}

	_, _, err = runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestQueueAddHold(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "rec-9", "--jurisdiction", "US-NY", "--org", "globex", "--hold"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add --hold failed: %v", err)
	}
	requireContains(t, out, "awaiting validation")
}

func TestQueueAddUrgent(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "rec-hot", "--jurisdiction", "US-NY", "--org", "globex", "--priority", "9"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add --priority failed: %v", err)
	}
	requireContains(t, out, "as urgent")
}

func TestQueueAddSkipsActiveDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	addArgs := []string{"queue", "add", "rec-1", "--jurisdiction", "US-CA", "--org", "acme", "--window", "2026-Q3"}

	out, _, err := runCLI(t, addArgs, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add failed: %v", err)
	}
	requireContains(t, out, "Enqueued item")

	// The record is still in flight, so a second add must not duplicate it.
	out, _, err = runCLI(t, addArgs, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("repeated queue add failed: %v", err)
	}
	requireContains(t, out, "Skipped rec-1: already item")

	items, err := env.store.ListItems(ctx, queue.ItemFilter{RecordID: "rec-1"})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item for rec-1, got %d", len(items))
	}

	// A different jurisdiction may file the same record concurrently.
	out, _, err = runCLI(t, []string{"queue", "add", "rec-1", "--jurisdiction", "US-NY", "--org", "acme"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("cross-jurisdiction add failed: %v", err)
	}
	requireContains(t, out, "Enqueued item")

	// Once the original filing settles, the record may be filed again.
	job, err := env.store.ClaimBatch(ctx, queue.ClaimRequest{
		BatchID:      "US-CA-acme-2026-Q3-1",
		Jurisdiction: "US-CA",
		OrgID:        "acme",
		SubmittedBy:  "ops@test",
		ItemIDs:      []int64{items[0].ID},
		RecordIDs:    []string{"rec-1"},
	})
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if err := env.store.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	out, _, err = runCLI(t, addArgs, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue add after completion failed: %v", err)
	}
	requireContains(t, out, "Enqueued item")
}

func TestQueueApprove(t *testing.T) {
	env := setupCLITestEnv(t)
	item := testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-1", Hold: true})

	out, _, err := runCLI(t, []string{"queue", "approve", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue approve failed: %v", err)
	}
	requireContains(t, out, "Approved 1 of 1 items")

	updated, err := env.store.ItemByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("ItemByID failed: %v", err)
	}
	if updated.Status != queue.StatusReady {
		t.Fatalf("approved item status = %s, want %s", updated.Status, queue.StatusReady)
	}

	// A second approve finds nothing left to release.
	out, _, err = runCLI(t, []string{"queue", "approve", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("repeat approve failed: %v", err)
	}
	requireContains(t, out, "Approved 0 of 1 items")
	requireContains(t, out, "left unchanged")
}

func TestQueueApproveInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "approve", "abc"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid item id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestQueueShow(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	item := testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-1", Window: "2026-Q3"})

	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show failed: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d", item.ID))
	requireContains(t, out, "rec-1")
	requireContains(t, out, "US-CA")
	requireContains(t, out, "2026-Q3")

	// Claim the item so show also renders its job.
	job, err := env.store.ClaimBatch(ctx, queue.ClaimRequest{
		BatchID:      "US-CA-acme-2026-Q3-1",
		Jurisdiction: "US-CA",
		OrgID:        "acme",
		SubmittedBy:  "ops@test",
		ItemIDs:      []int64{item.ID},
		RecordIDs:    []string{item.RecordID},
	})
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show after claim failed: %v", err)
	}
	requireContains(t, out, "Queued")
	requireContains(t, out, fmt.Sprintf("Job %d", job.ID))
	requireContains(t, out, job.BatchID)
}

func TestQueueShowFailedItemRetryGate(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	item := testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-1", Window: "2026-Q3"})
	job, err := env.store.ClaimBatch(ctx, queue.ClaimRequest{
		BatchID:      "US-CA-acme-2026-Q3-1",
		Jurisdiction: "US-CA",
		OrgID:        "acme",
		SubmittedBy:  "ops@test",
		ItemIDs:      []int64{item.ID},
		RecordIDs:    []string{item.RecordID},
	})
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if err := env.store.FailJob(ctx, job.ID, "portal rejected the batch"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	// First failure carries no retry gate, so the item retries immediately.
	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show failed: %v", err)
	}
	requireContains(t, out, "Failures:")
	requireContains(t, out, "due now")

	gate := time.Now().UTC().Add(time.Hour)
	if _, err := env.store.RequeueItem(ctx, item.ID, gate); err != nil {
		t.Fatalf("RequeueItem failed: %v", err)
	}
	job, err = env.store.ClaimBatch(ctx, queue.ClaimRequest{
		BatchID:      "US-CA-acme-2026-Q3-2",
		Jurisdiction: "US-CA",
		OrgID:        "acme",
		SubmittedBy:  "ops@test",
		ItemIDs:      []int64{item.ID},
		RecordIDs:    []string{item.RecordID},
	})
	if err != nil {
		t.Fatalf("second ClaimBatch failed: %v", err)
	}
	if err := env.store.FailJob(ctx, job.ID, "portal rejected the batch again"); err != nil {
		t.Fatalf("second FailJob failed: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show after second failure failed: %v", err)
	}
	requireContains(t, out, "Next retry:")
	if strings.Contains(out, "due now") {
		t.Fatalf("future retry gate reported as due:\n%s", out)
	}
}

func TestQueueShowNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "show", "999"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "show", "999", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show --json not found: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if result["error"] != "not_found" {
		t.Fatalf("expected error=not_found, got %v", result["error"])
	}
}

func TestQueueShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	item := testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-1"})

	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID), "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show --json failed: %v", err)
	}
	var detail struct {
		Item map[string]any `json:"item"`
	}
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if detail.Item["id"] != float64(item.ID) {
		t.Fatalf("expected id %d, got %v", item.ID, detail.Item["id"])
	}
	if detail.Item["recordId"] != "rec-1" {
		t.Fatalf("expected recordId rec-1, got %v", detail.Item["recordId"])
	}
}

func TestQueueListJSONEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json empty failed: %v", err)
	}
	var items []any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty array, got %d items", len(items))
	}
}

func TestQueueStats(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-1"})
	testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-NY", OrgID: "globex", RecordID: "rec-2", Priority: 9})
	testsupport.Enqueue(t, env.store, queue.NewItemParams{Jurisdiction: "US-CA", OrgID: "acme", RecordID: "rec-3", Hold: true})

	out, _, err := runCLI(t, []string{"queue", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats failed: %v", err)
	}
	requireContains(t, out, "Ready")
	requireContains(t, out, "Pending Validation")
	requireContains(t, out, "Total: 3")
	requireContains(t, out, "Outstanding: 3")
	requireContains(t, out, "Urgent (priority >= 8): 1")
	requireContains(t, out, "US-CA")

	out, _, err = runCLI(t, []string{"queue", "stats", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats --json failed: %v", err)
	}
	var stats map[string]any
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if stats["total"] != float64(3) {
		t.Fatalf("expected total=3, got %v", stats["total"])
	}
	if stats["urgentCount"] != float64(1) {
		t.Fatalf("expected urgentCount=1, got %v", stats["urgentCount"])
	}
}

func TestQueueStatsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats failed: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueAddRejectsBadSchedule(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "add", "rec-1", "--jurisdiction", "US-CA", "--org", "acme", "--scheduled", "next tuesday"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid schedule time") {
		t.Fatalf("expected schedule parse error, got %v", err)
	}
}
