// Package portal models the batch size constraints government filing portals
// impose on submissions.
package portal

import (
	"fmt"

	"docket/internal/config"
)

// Limits reports the largest batch a jurisdiction's portal accepts.
type Limits interface {
	// MaxBatchSize returns the batch ceiling for the jurisdiction. Every
	// jurisdiction has a ceiling; unknown jurisdictions get the fallback.
	MaxBatchSize(jurisdiction string) int
}

// StaticLimits serves portal limits from a fixed table with a fallback for
// jurisdictions without an explicit entry. Jurisdiction codes match exactly;
// no case folding is applied.
type StaticLimits struct {
	limits   map[string]int
	fallback int
}

var _ Limits = (*StaticLimits)(nil)

// NewStaticLimits builds a limit table. Every configured limit and the
// fallback must be positive.
func NewStaticLimits(limits map[string]int, fallback int) (*StaticLimits, error) {
	if fallback < 1 {
		return nil, fmt.Errorf("portal: fallback batch size must be positive, got %d", fallback)
	}
	table := make(map[string]int, len(limits))
	for jurisdiction, limit := range limits {
		if jurisdiction == "" {
			return nil, fmt.Errorf("portal: limit configured for empty jurisdiction")
		}
		if limit < 1 {
			return nil, fmt.Errorf("portal: batch size for %s must be positive, got %d", jurisdiction, limit)
		}
		table[jurisdiction] = limit
	}
	return &StaticLimits{limits: table, fallback: fallback}, nil
}

// FromConfig builds the limit table from application configuration.
func FromConfig(cfg *config.Config) (*StaticLimits, error) {
	return NewStaticLimits(cfg.Portal.Limits, cfg.Scheduler.DefaultMaxBatchSize)
}

// MaxBatchSize implements Limits.
func (s *StaticLimits) MaxBatchSize(jurisdiction string) int {
	if limit, ok := s.limits[jurisdiction]; ok {
		return limit
	}
	return s.fallback
}

// Override returns the explicit limit for a jurisdiction and whether one is
// configured.
func (s *StaticLimits) Override(jurisdiction string) (int, bool) {
	limit, ok := s.limits[jurisdiction]
	return limit, ok
}
