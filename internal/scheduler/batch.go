package scheduler

import (
	"sort"

	"docket/internal/queue"
)

// Batch is one claim candidate: a size-bounded, priority-ordered slice of a
// group. ItemIDs and RecordIDs are parallel and fix the job's membership.
type Batch struct {
	Jurisdiction string
	OrgID        string
	Window       string
	ItemIDs      []int64
	RecordIDs    []string
	RecordCount  int
	// Priority is the maximum member priority.
	Priority int
}

// SplitGroup orders a group's members by priority descending, then by
// scheduled time ascending, then by identifier, and slices the sequence into
// consecutive batches of at most maxBatchSize records.
func SplitGroup(group Group, maxBatchSize int) []Batch {
	if len(group.Items) == 0 {
		return nil
	}
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}

	sorted := make([]*queue.Item, len(group.Items))
	copy(sorted, group.Items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		if !sorted[i].ScheduledAt.Equal(sorted[j].ScheduledAt) {
			return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	batches := make([]Batch, 0, (len(sorted)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(sorted); start += maxBatchSize {
		end := min(start+maxBatchSize, len(sorted))
		batches = append(batches, newBatch(group.Key, sorted[start:end]))
	}
	return batches
}

// OrderBatches sorts claim candidates by priority descending. The sort is
// stable, so batches of equal priority keep their group and slice order.
func OrderBatches(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].Priority > batches[j].Priority
	})
}

func newBatch(key GroupKey, items []*queue.Item) Batch {
	batch := Batch{
		Jurisdiction: key.Jurisdiction,
		OrgID:        key.OrgID,
		Window:       key.Window,
		ItemIDs:      make([]int64, 0, len(items)),
		RecordIDs:    make([]string, 0, len(items)),
		RecordCount:  len(items),
	}
	for _, item := range items {
		batch.ItemIDs = append(batch.ItemIDs, item.ID)
		batch.RecordIDs = append(batch.RecordIDs, item.RecordID)
		if item.Priority > batch.Priority {
			batch.Priority = item.Priority
		}
	}
	return batch
}
