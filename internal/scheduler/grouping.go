package scheduler

import (
	"sort"

	"docket/internal/queue"
)

// GroupKey identifies one homogeneous slice of the backlog. Items are only
// batched together when all three coordinates match.
type GroupKey struct {
	Jurisdiction string
	OrgID        string
	Window       string
}

// Group collects the claimable items sharing one key.
type Group struct {
	Key         GroupKey
	Items       []*queue.Item
	RecordCount int
	// Priority is the maximum member priority and decides how early the
	// group's batches are claimed.
	Priority int
}

// GroupItems partitions items by (jurisdiction, organization, window). The
// result is canonical: groups are ordered by key and members by ascending
// identifier, so identical snapshots produce identical output regardless of
// input order.
func GroupItems(items []*queue.Item) []Group {
	byKey := make(map[GroupKey]*Group)
	for _, item := range items {
		if item == nil {
			continue
		}
		key := GroupKey{Jurisdiction: item.Jurisdiction, OrgID: item.OrgID, Window: item.Window}
		group, ok := byKey[key]
		if !ok {
			group = &Group{Key: key}
			byKey[key] = group
		}
		group.Items = append(group.Items, item)
		group.RecordCount++
		if item.Priority > group.Priority {
			group.Priority = item.Priority
		}
	}

	keys := make([]GroupKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Jurisdiction != keys[j].Jurisdiction {
			return keys[i].Jurisdiction < keys[j].Jurisdiction
		}
		if keys[i].OrgID != keys[j].OrgID {
			return keys[i].OrgID < keys[j].OrgID
		}
		return keys[i].Window < keys[j].Window
	})

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group.Items, func(i, j int) bool {
			return group.Items[i].ID < group.Items[j].ID
		})
		groups = append(groups, *group)
	}
	return groups
}
