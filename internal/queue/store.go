package queue

import (
	"context"
	"fmt"
	"time"
)

// NewItemParams describes one item to enqueue. Zero Priority means
// DefaultPriority; zero ScheduledAt means immediately eligible.
type NewItemParams struct {
	Jurisdiction string
	OrgID        string
	RecordID     string
	Priority     int
	Window       string
	ScheduledAt  time.Time
	// Hold enqueues the item as pending_validation; it stays out of the
	// claimable pool until explicitly approved.
	Hold bool
}

// Validate reports whether the parameters describe a storable item.
func (p NewItemParams) Validate() error {
	if p.Jurisdiction == "" {
		return fmt.Errorf("enqueue: jurisdiction is required")
	}
	if p.OrgID == "" {
		return fmt.Errorf("enqueue: organization is required")
	}
	if p.RecordID == "" {
		return fmt.Errorf("enqueue: record identifier is required")
	}
	if p.Priority < 0 {
		return fmt.Errorf("enqueue: priority must not be negative")
	}
	return nil
}

// ItemFilter narrows ListItems. Zero values mean "any".
type ItemFilter struct {
	Statuses     []Status
	Jurisdiction string
	OrgID        string
	RecordID     string
	Limit        int
}

// JobFilter narrows ListJobs. Zero values mean "any".
type JobFilter struct {
	Statuses     []JobStatus
	Jurisdiction string
	Limit        int
}

// ClaimRequest names the batch a claim converts into a job. ItemIDs and
// RecordIDs are parallel: RecordIDs[i] is the source record of ItemIDs[i],
// ordered as the batch was planned.
type ClaimRequest struct {
	BatchID      string
	Jurisdiction string
	OrgID        string
	SubmittedBy  string
	ItemIDs      []int64
	RecordIDs    []string
}

// Validate reports whether the request is claimable at all.
func (r ClaimRequest) Validate() error {
	if r.BatchID == "" {
		return fmt.Errorf("claim: batch identifier is required")
	}
	if len(r.ItemIDs) == 0 {
		return fmt.Errorf("claim: batch %s has no members", r.BatchID)
	}
	if len(r.ItemIDs) != len(r.RecordIDs) {
		return fmt.Errorf("claim: batch %s has %d item ids but %d record ids", r.BatchID, len(r.ItemIDs), len(r.RecordIDs))
	}
	return nil
}

// Store is the transactional persistence contract the scheduler, daemon, and
// CLI share. Every implementation must provide the same semantics:
//
//   - selections are consistent snapshots with deterministic ordering;
//   - ClaimBatch is atomic and all-or-nothing under concurrent claims, and
//     reports *PartialClaimError when contention took part of the batch;
//   - RequeueItem and CancelItem are conditional on the item still being
//     failed, returning false (not an error) when a concurrent pass won;
//   - Statistics reads a single snapshot.
type Store interface {
	// Producer surface.
	Enqueue(ctx context.Context, params NewItemParams) (*Item, error)
	// MarkValidated releases held items into the claimable pool. Returns the
	// number of items actually transitioned.
	MarkValidated(ctx context.Context, ids ...int64) (int64, error)

	// Lookups.
	ItemByID(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*Item, error)
	JobByID(ctx context.Context, id int64) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// Scheduling selections. Both return ready, unassigned items whose
	// scheduled time and retry gate have passed. UrgentItems returns those at
	// or above minPriority ordered priority-descending; GroupableItems
	// returns those below belowPriority ordered by group key then priority.
	UrgentItems(ctx context.Context, now time.Time, minPriority int) ([]*Item, error)
	GroupableItems(ctx context.Context, now time.Time, belowPriority int) ([]*Item, error)

	// ClaimBatch creates the job and converts every member from ready to
	// queued inside one transaction, or rolls the whole transaction back.
	ClaimBatch(ctx context.Context, req ClaimRequest) (*Job, error)

	// Retry surface.
	FailedDue(ctx context.Context, now time.Time) ([]*Item, error)
	// RequeueItem re-admits a failed item: status back to ready, retry gate
	// set to nextRetry, failure count incremented, job reference and error
	// cleared.
	RequeueItem(ctx context.Context, id int64, nextRetry time.Time) (bool, error)
	// CancelItem terminally cancels a failed item, clearing its job
	// reference and keeping the error message for the audit trail.
	CancelItem(ctx context.Context, id int64) (bool, error)

	// Downstream submitter surface.
	StartJob(ctx context.Context, jobID int64) error
	CompleteJob(ctx context.Context, jobID int64) error
	FailJob(ctx context.Context, jobID int64, message string) error

	// Statistics aggregates all items from one snapshot. urgentPriority sets
	// the threshold for the outstanding-urgent count.
	Statistics(ctx context.Context, urgentPriority int) (*Statistics, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
