package queue

import "time"

// Priority bucket labels used in statistics.
const (
	BucketLow    = "low"
	BucketNormal = "normal"
	BucketUrgent = "urgent"
)

// PriorityBucket maps a priority value to its statistics bucket.
func PriorityBucket(priority int) string {
	switch {
	case priority < 4:
		return BucketLow
	case priority < DefaultUrgentPriority:
		return BucketNormal
	default:
		return BucketUrgent
	}
}

// Statistics is a point-in-time aggregate over all queue items, computed
// fresh from a single snapshot on every call rather than maintained
// incrementally.
type Statistics struct {
	Total          int            `json:"total"`
	ByStatus       map[Status]int `json:"by_status"`
	ByJurisdiction map[string]int `json:"by_jurisdiction"`
	ByPriority     map[string]int `json:"by_priority"`
	// UrgentCount is the number of items at or above the urgent threshold
	// that are still outstanding (neither submitted nor cancelled).
	UrgentCount int       `json:"urgent_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Outstanding reports the number of items not yet in a terminal state.
func (s *Statistics) Outstanding() int {
	if s == nil {
		return 0
	}
	return s.Total - s.ByStatus[StatusSubmitted] - s.ByStatus[StatusCancelled]
}
