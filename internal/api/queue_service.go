package api

import (
	"context"
	"errors"

	"docket/internal/queue"
)

// QueueReader is the read-only slice of queue.Store the front-ends need.
// queue.Store satisfies it; tests may substitute a fake.
type QueueReader interface {
	ItemByID(ctx context.Context, id int64) (*queue.Item, error)
	ListItems(ctx context.Context, filter queue.ItemFilter) ([]*queue.Item, error)
	JobByID(ctx context.Context, id int64) (*queue.Job, error)
	ListJobs(ctx context.Context, filter queue.JobFilter) ([]*queue.Job, error)
	Statistics(ctx context.Context, urgentPriority int) (*queue.Statistics, error)
}

// QueueService renders queue state into wire types. Store errors pass
// through unwrapped so callers can still match queue.ErrNotFound.
type QueueService struct {
	reader         QueueReader
	urgentPriority int
}

// NewQueueService wraps reader. urgentPriority is the threshold fed into
// statistics snapshots.
func NewQueueService(reader QueueReader, urgentPriority int) *QueueService {
	return &QueueService{reader: reader, urgentPriority: urgentPriority}
}

// ListItems returns the items matching filter in wire form.
func (s *QueueService) ListItems(ctx context.Context, filter queue.ItemFilter) ([]QueueItem, error) {
	items, err := s.reader.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// DescribeItem returns one item and, when the item is claimed, the job
// holding it. A dangling job reference yields the item alone.
func (s *QueueService) DescribeItem(ctx context.Context, id int64) (QueueItem, *Job, error) {
	item, err := s.reader.ItemByID(ctx, id)
	if err != nil {
		return QueueItem{}, nil, err
	}
	out := FromQueueItem(item)
	if item.JobID == nil {
		return out, nil, nil
	}
	job, err := s.reader.JobByID(ctx, *item.JobID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return out, nil, nil
		}
		return QueueItem{}, nil, err
	}
	wire := FromJob(job)
	return out, &wire, nil
}

// ListJobs returns the jobs matching filter in wire form.
func (s *QueueService) ListJobs(ctx context.Context, filter queue.JobFilter) ([]Job, error) {
	jobs, err := s.reader.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// DescribeJob returns one job in wire form, record IDs included.
func (s *QueueService) DescribeJob(ctx context.Context, id int64) (Job, error) {
	job, err := s.reader.JobByID(ctx, id)
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// Stats returns a fresh statistics snapshot in wire form.
func (s *QueueService) Stats(ctx context.Context) (*Statistics, error) {
	stats, err := s.reader.Statistics(ctx, s.urgentPriority)
	if err != nil {
		return nil, err
	}
	return FromStatistics(stats), nil
}
