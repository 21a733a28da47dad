package schedule

import (
	"cmp"
	"slices"
)

// FindConflictIDs returns the IDs of every event that overlaps at least one
// other event in the list. Touching endpoints count as an overlap. The result
// is a sorted set; an event with no partner never appears in it.
//
// The intervals are expected to belong to a single user on a single day and
// may arrive in any order.
func FindConflictIDs(events []IdentifiedInterval) ([]string, error) {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	if len(events) < 2 {
		return []string{}, nil
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b IdentifiedInterval) int {
		return a.Start.Compare(b.Start)
	})

	// i walks ahead of j. j only moves once sorted[j] has ended before
	// sorted[i] starts; since starts are ascending, nothing later can touch it.
	seen := make(map[string]struct{})
	n := len(sorted)
	for i, j := 1, 0; i < n && j < n; {
		switch {
		case i == j:
			i++
		case !sorted[i].Start.After(sorted[j].End):
			seen[sorted[i].ID] = struct{}{}
			seen[sorted[j].ID] = struct{}{}
			i++
		default:
			j++
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, cmp.Compare[string])
	return ids, nil
}
