package service

import (
	"sort"
	"time"

	"github.com/atelierworks/atelier-api/internal/models"
)

// EffectiveOccupancy applies the per-day delta formula to a slot's base
// occupancy. The result never goes negative, even when more moved-out or
// removed deltas exist than base occupancy.
func EffectiveOccupancy(base int, idx OverrideIndex, day time.Time, slotKey string) int {
	key := models.OverrideKey(day, slotKey)
	taken := base - idx.MovedOut[key] + idx.MovedIn[key] + idx.AdhocIn[key] - idx.ExplicitlyRemoved[key]
	if taken < 0 {
		return 0
	}
	return taken
}

// AnnotateOccupancy fills Taken, CapacityLeft and Status from the base
// occupancy and the override index.
func AnnotateOccupancy(occ *models.Occurrence, base int, idx OverrideIndex) {
	occ.Taken = EffectiveOccupancy(base, idx, occ.Start, occ.SlotKey)
	left := occ.Capacity - occ.Taken
	if left < 0 {
		left = 0
	}
	occ.CapacityLeft = left
	if left > 0 {
		occ.Status = models.OccurrenceAvailable
	} else {
		occ.Status = models.OccurrenceFull
	}
}

// ResolveOccurrences merges candidate occurrences from all origins into the
// final de-duplicated list.
//
// When dropSuperseded is true (student-scoped views, where every delta in
// the index belongs to the student), base candidates whose (day, slot key)
// appears in MovedOut or ExplicitlyRemoved are superseded and dropped before
// merging. Professor-scoped views pass false: a moved-out student lowers the
// day's occupancy but the class itself still takes place for everyone else.
// When several remaining candidates describe the same (day, slot key), the
// origin with the highest priority wins. The result is sorted ascending by
// start instant.
func ResolveOccurrences(candidates []models.Occurrence, idx OverrideIndex, dropSuperseded bool) []models.Occurrence {
	byKey := make(map[string]models.Occurrence, len(candidates))
	for _, cand := range candidates {
		key := cand.Key()
		if dropSuperseded && cand.Origin == models.OriginBase {
			if idx.MovedOut[key] > 0 || idx.ExplicitlyRemoved[key] > 0 {
				continue
			}
		}
		if existing, ok := byKey[key]; ok && existing.Origin.Priority() >= cand.Origin.Priority() {
			continue
		}
		byKey[key] = cand
	}

	resolved := make([]models.Occurrence, 0, len(byKey))
	for _, occ := range byKey {
		resolved = append(resolved, occ)
	}
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].Start.Equal(resolved[j].Start) {
			return resolved[i].SlotKey < resolved[j].SlotKey
		}
		return resolved[i].Start.Before(resolved[j].Start)
	})
	return resolved
}
