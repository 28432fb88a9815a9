package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/portal"
	"docket/internal/queue"
)

// PassResult summarizes one scheduling pass. Failures never abort a pass;
// they accumulate in Errors while remaining batches proceed.
type PassResult struct {
	UrgentProcessed   int      `json:"urgent_processed"`
	UrgentJobsCreated int      `json:"urgent_jobs_created"`
	GroupsFound       int      `json:"groups_found"`
	BatchesCreated    int      `json:"batches_created"`
	JobsCreated       int      `json:"jobs_created"`
	JobIDs            []int64  `json:"job_ids,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// RequeueResult summarizes one retry pass over failed items.
type RequeueResult struct {
	Requeued  int      `json:"requeued"`
	Cancelled int      `json:"cancelled"`
	Errors    []string `json:"errors,omitempty"`
}

// Scheduler turns the claimable backlog into submission jobs. It holds no
// mutable state of its own; concurrent passes coordinate solely through the
// store's conditional claim.
type Scheduler struct {
	store          queue.Store
	limits         portal.Limits
	logger         *slog.Logger
	submittedBy    string
	urgentPriority int
	baseDelay      time.Duration
	maxAttempts    int
	now            func() time.Time
}

// New constructs a scheduler bound to the given store and portal limits.
func New(cfg *config.Config, store queue.Store, limits portal.Limits, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:          store,
		limits:         limits,
		logger:         logging.NewComponentLogger(logger, "scheduler"),
		submittedBy:    cfg.Scheduler.SubmittedBy,
		urgentPriority: cfg.Scheduler.UrgentPriority,
		baseDelay:      time.Duration(cfg.Retry.BaseDelayMinutes) * time.Minute,
		maxAttempts:    cfg.Retry.MaxAttempts,
		now:            time.Now,
	}
}

// RunSchedulingPass claims urgent items individually, then groups, splits,
// and claims the remaining backlog. submittedBy overrides the configured
// submitter identity when non-empty.
func (s *Scheduler) RunSchedulingPass(ctx context.Context, submittedBy string) *PassResult {
	if submittedBy == "" {
		submittedBy = s.submittedBy
	}
	now := s.now().UTC()
	result := &PassResult{}

	s.runUrgent(ctx, now, submittedBy, result)
	s.runGrouped(ctx, now, submittedBy, result)

	s.logger.Info("scheduling pass complete",
		logging.Int("urgent_processed", result.UrgentProcessed),
		logging.Int("urgent_jobs", result.UrgentJobsCreated),
		logging.Int("groups", result.GroupsFound),
		logging.Int("batches", result.BatchesCreated),
		logging.Int("jobs", result.JobsCreated),
		logging.Int("errors", len(result.Errors)))
	return result
}

// runUrgent claims every ready item at or above the urgency threshold as its
// own single-item batch, ahead of any group formation.
func (s *Scheduler) runUrgent(ctx context.Context, now time.Time, submittedBy string, result *PassResult) {
	urgent, err := s.store.UrgentItems(ctx, now, s.urgentPriority)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("select urgent items: %v", err))
		return
	}

	for _, item := range urgent {
		result.UrgentProcessed++
		key := GroupKey{Jurisdiction: item.Jurisdiction, OrgID: item.OrgID, Window: item.Window}
		job, err := s.claim(ctx, newBatch(key, []*queue.Item{item}), submittedBy)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("claim urgent item %d: %v", item.ID, err))
			continue
		}
		result.UrgentJobsCreated++
		result.JobsCreated++
		result.JobIDs = append(result.JobIDs, job.ID)
		s.logger.Info("urgent item claimed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldBatchID, job.BatchID),
			logging.Int(logging.FieldPriority, item.Priority))
	}
}

// runGrouped partitions the non-urgent backlog, splits each group against its
// portal limit, and claims the resulting batches in priority order.
func (s *Scheduler) runGrouped(ctx context.Context, now time.Time, submittedBy string, result *PassResult) {
	items, err := s.store.GroupableItems(ctx, now, s.urgentPriority)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("select groupable items: %v", err))
		return
	}
	if len(items) == 0 {
		return
	}

	groups := GroupItems(items)
	result.GroupsFound = len(groups)

	var batches []Batch
	for _, group := range groups {
		batches = append(batches, SplitGroup(group, s.limits.MaxBatchSize(group.Key.Jurisdiction))...)
	}
	OrderBatches(batches)
	result.BatchesCreated = len(batches)

	for _, batch := range batches {
		job, err := s.claim(ctx, batch, submittedBy)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("claim batch for %s/%s: %v", batch.Jurisdiction, batch.OrgID, err))
			continue
		}
		result.JobsCreated++
		result.JobIDs = append(result.JobIDs, job.ID)
		s.logger.Info("batch claimed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldBatchID, job.BatchID),
			logging.String(logging.FieldJurisdiction, batch.Jurisdiction),
			logging.String(logging.FieldOrgID, batch.OrgID),
			logging.String(logging.FieldWindow, batch.Window),
			logging.Int(logging.FieldCount, batch.RecordCount))
	}
}

func (s *Scheduler) claim(ctx context.Context, batch Batch, submittedBy string) (*queue.Job, error) {
	req := queue.ClaimRequest{
		BatchID:      s.newBatchID(batch.Jurisdiction, batch.OrgID),
		Jurisdiction: batch.Jurisdiction,
		OrgID:        batch.OrgID,
		SubmittedBy:  submittedBy,
		ItemIDs:      batch.ItemIDs,
		RecordIDs:    batch.RecordIDs,
	}
	job, err := s.store.ClaimBatch(ctx, req)
	if err != nil {
		if queue.IsPartialClaim(err) {
			s.logger.Warn("batch lost to concurrent claim",
				logging.String(logging.FieldBatchID, req.BatchID),
				logging.String(logging.FieldJurisdiction, batch.Jurisdiction),
				logging.String(logging.FieldOrgID, batch.OrgID))
		}
		return nil, err
	}
	return job, nil
}

// newBatchID builds a human-traceable, collision-resistant batch identifier.
func (s *Scheduler) newBatchID(jurisdiction, orgID string) string {
	stamp := s.now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s-%s-%s-%s", jurisdiction, orgID, stamp, uuid.NewString()[:8])
}

// RequeueFailures re-admits failed items whose retry gate has passed. Items
// at the attempt ceiling are cancelled; the rest return to ready with an
// exponentially later retry gate.
func (s *Scheduler) RequeueFailures(ctx context.Context, now time.Time) *RequeueResult {
	now = now.UTC()
	result := &RequeueResult{}

	due, err := s.store.FailedDue(ctx, now)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("select failed items: %v", err))
		return result
	}

	for _, item := range due {
		if item.FailureCount >= s.maxAttempts {
			cancelled, err := s.store.CancelItem(ctx, item.ID)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("cancel item %d: %v", item.ID, err))
				continue
			}
			if cancelled {
				result.Cancelled++
				s.logger.Info("item cancelled after exhausting retries",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.Int("failures", item.FailureCount))
			}
			continue
		}

		nextRetry := now.Add(s.baseDelay * (1 << item.FailureCount))
		requeued, err := s.store.RequeueItem(ctx, item.ID, nextRetry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("requeue item %d: %v", item.ID, err))
			continue
		}
		if requeued {
			result.Requeued++
			s.logger.Info("failed item requeued",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Int("failures", item.FailureCount),
				logging.Time("next_retry", nextRetry))
		}
	}

	if result.Requeued > 0 || result.Cancelled > 0 {
		s.logger.Info("requeue pass complete",
			logging.Int("requeued", result.Requeued),
			logging.Int("cancelled", result.Cancelled),
			logging.Int("errors", len(result.Errors)))
	}
	return result
}

// QueueStatistics reports aggregate queue counts from a single snapshot.
func (s *Scheduler) QueueStatistics(ctx context.Context) (*queue.Statistics, error) {
	return s.store.Statistics(ctx, s.urgentPriority)
}
