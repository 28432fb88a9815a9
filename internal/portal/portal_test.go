package portal_test

import (
	"strings"
	"testing"

	"docket/internal/portal"
	"docket/internal/testsupport"
)

func TestMaxBatchSizeUsesOverride(t *testing.T) {
	limits, err := portal.NewStaticLimits(map[string]int{"US-CA": 250, "US-NY": 50}, 100)
	if err != nil {
		t.Fatalf("NewStaticLimits: %v", err)
	}

	if got := limits.MaxBatchSize("US-CA"); got != 250 {
		t.Fatalf("MaxBatchSize(US-CA) = %d, want 250", got)
	}
	if got := limits.MaxBatchSize("US-NY"); got != 50 {
		t.Fatalf("MaxBatchSize(US-NY) = %d, want 50", got)
	}
}

func TestMaxBatchSizeFallsBack(t *testing.T) {
	limits, err := portal.NewStaticLimits(map[string]int{"US-CA": 250}, 100)
	if err != nil {
		t.Fatalf("NewStaticLimits: %v", err)
	}

	if got := limits.MaxBatchSize("US-TX"); got != 100 {
		t.Fatalf("MaxBatchSize(US-TX) = %d, want fallback 100", got)
	}
	// Codes match exactly; a differently cased code is a different jurisdiction.
	if got := limits.MaxBatchSize("us-ca"); got != 100 {
		t.Fatalf("MaxBatchSize(us-ca) = %d, want fallback 100", got)
	}
}

func TestNewStaticLimitsRejectsBadValues(t *testing.T) {
	if _, err := portal.NewStaticLimits(nil, 0); err == nil {
		t.Fatal("expected error for nonpositive fallback")
	}
	if _, err := portal.NewStaticLimits(map[string]int{"US-CA": 0}, 100); err == nil {
		t.Fatal("expected error for nonpositive limit")
	}
	_, err := portal.NewStaticLimits(map[string]int{"": 10}, 100)
	if err == nil || !strings.Contains(err.Error(), "empty jurisdiction") {
		t.Fatalf("expected empty jurisdiction error, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPortalLimit("US-CA", 250), testsupport.WithDefaultMaxBatchSize(75))

	limits, err := portal.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if got := limits.MaxBatchSize("US-CA"); got != 250 {
		t.Fatalf("MaxBatchSize(US-CA) = %d, want 250", got)
	}
	if got := limits.MaxBatchSize("US-WA"); got != 75 {
		t.Fatalf("MaxBatchSize(US-WA) = %d, want 75", got)
	}

	if limit, ok := limits.Override("US-CA"); !ok || limit != 250 {
		t.Fatalf("Override(US-CA) = %d,%v, want 250,true", limit, ok)
	}
	if _, ok := limits.Override("US-WA"); ok {
		t.Fatal("Override(US-WA) should report no explicit entry")
	}
}
