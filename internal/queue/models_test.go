package queue_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"docket/internal/queue"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input  string
		want   queue.Status
		wantOK bool
	}{
		{"ready", queue.StatusReady, true},
		{"  Pending_Validation ", queue.StatusPendingValidation, true},
		{"QUEUED", queue.StatusQueued, true},
		{"cancelled", queue.StatusCancelled, true},
		{"", "", false},
		{"shipped", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.input)
		if ok != tc.wantOK {
			t.Fatalf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	if got, ok := queue.ParseJobStatus("In_Progress"); !ok || got != queue.JobInProgress {
		t.Fatalf("ParseJobStatus(In_Progress) = %q, %v", got, ok)
	}
	if _, ok := queue.ParseJobStatus("paused"); ok {
		t.Fatal("expected unknown job status to be rejected")
	}
}

func TestPriorityBucket(t *testing.T) {
	cases := []struct {
		priority int
		want     string
	}{
		{0, queue.BucketLow},
		{3, queue.BucketLow},
		{4, queue.BucketNormal},
		{7, queue.BucketNormal},
		{8, queue.BucketUrgent},
		{12, queue.BucketUrgent},
	}
	for _, tc := range cases {
		if got := queue.PriorityBucket(tc.priority); got != tc.want {
			t.Fatalf("PriorityBucket(%d) = %q, want %q", tc.priority, got, tc.want)
		}
	}
}

func TestItemRetryDue(t *testing.T) {
	now := time.Now().UTC()
	item := queue.Item{}
	if !item.RetryDue(now) {
		t.Fatal("item without a next-retry time should be due")
	}
	future := now.Add(time.Hour)
	item.NextRetryAt = &future
	if item.RetryDue(now) {
		t.Fatal("item with a future next-retry time should not be due")
	}
	past := now.Add(-time.Minute)
	item.NextRetryAt = &past
	if !item.RetryDue(now) {
		t.Fatal("item with an elapsed next-retry time should be due")
	}
}

func TestItemTerminal(t *testing.T) {
	for _, status := range queue.AllStatuses() {
		item := queue.Item{Status: status}
		want := status == queue.StatusSubmitted || status == queue.StatusCancelled
		if got := item.IsTerminal(); got != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestItemIsUrgent(t *testing.T) {
	item := queue.Item{Priority: 8}
	if !item.IsUrgent(queue.DefaultUrgentPriority) {
		t.Fatal("priority at the threshold should be urgent")
	}
	item.Priority = 7
	if item.IsUrgent(queue.DefaultUrgentPriority) {
		t.Fatal("priority below the threshold should not be urgent")
	}
	if !item.IsUrgent(7) {
		t.Fatal("a lowered threshold should widen the urgent set")
	}
}

func TestClaimRequestValidate(t *testing.T) {
	valid := queue.ClaimRequest{
		BatchID:      "US-CA-ORG1-20260823T010203-abcd1234",
		Jurisdiction: "US-CA",
		OrgID:        "ORG1",
		SubmittedBy:  "tester",
		ItemIDs:      []int64{1, 2},
		RecordIDs:    []string{"r1", "r2"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	missing := valid
	missing.BatchID = ""
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for empty batch id")
	}

	empty := valid
	empty.ItemIDs = nil
	empty.RecordIDs = nil
	if err := empty.Validate(); err == nil {
		t.Fatal("expected error for empty batch")
	}

	skewed := valid
	skewed.RecordIDs = []string{"r1"}
	if err := skewed.Validate(); err == nil {
		t.Fatal("expected error for mismatched id lists")
	}
}

func TestNewItemParamsValidate(t *testing.T) {
	params := queue.NewItemParams{Jurisdiction: "US-NY", OrgID: "ORG9", RecordID: "rec-1"}
	if err := params.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	params.RecordID = ""
	if err := params.Validate(); err == nil {
		t.Fatal("expected error for missing record id")
	}
	params.RecordID = "rec-1"
	params.Priority = -1
	if err := params.Validate(); err == nil {
		t.Fatal("expected error for negative priority")
	}
}

func TestPartialClaimErrorMatchesSentinel(t *testing.T) {
	err := &queue.PartialClaimError{BatchID: "b-1", Requested: 10, Claimed: 4}
	if !errors.Is(err, queue.ErrPartialClaim) {
		t.Fatal("PartialClaimError should match ErrPartialClaim")
	}
	if !strings.Contains(err.Error(), "b-1") {
		t.Fatalf("error message should name the batch: %q", err.Error())
	}
	wrapped := errors.Join(errors.New("outer"), err)
	if !errors.Is(wrapped, queue.ErrPartialClaim) {
		t.Fatal("wrapped PartialClaimError should still match the sentinel")
	}
}
