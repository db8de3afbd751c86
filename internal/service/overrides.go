package service

import (
	"time"

	"github.com/atelierworks/atelier-api/internal/models"
)

// OverrideIndex aggregates the per-date deltas that adjust a month's base
// occurrence view. Keys are models.OverrideKey(day, slotKey); values are
// counts. The index is a pure read model: building it never mutates inputs.
type OverrideIndex struct {
	MovedOut          map[string]int
	MovedIn           map[string]int
	AdhocIn           map[string]int
	ExplicitlyRemoved map[string]int
}

// NewOverrideIndex returns an empty index with all maps allocated.
func NewOverrideIndex() OverrideIndex {
	return OverrideIndex{
		MovedOut:          map[string]int{},
		MovedIn:           map[string]int{},
		AdhocIn:           map[string]int{},
		ExplicitlyRemoved: map[string]int{},
	}
}

// BuildOverrideIndex indexes reschedules and attendance-derived deltas for a
// month. The range must be derived from the enrollment's or target's own
// month, not from the reschedule's recorded month, so deltas never leak
// across month boundaries.
//
//   - each reschedule whose fromDate is in range increments MovedOut under
//     the origin slot, and each whose toDate is in range increments MovedIn
//     under the destination slot;
//   - each non-removed ad-hoc attendance record in range increments AdhocIn;
//   - each soft-removed regular record that carries a slot snapshot is an
//     explicit single-occurrence cancellation and increments
//     ExplicitlyRemoved.
func BuildOverrideIndex(
	reschedules []models.RescheduleRequest,
	records []models.AttendanceRecord,
	monthStart, monthEnd time.Time,
) OverrideIndex {
	idx := NewOverrideIndex()

	for i := range reschedules {
		r := &reschedules[i]
		if models.InMonth(r.FromDate, monthStart, monthEnd) {
			idx.MovedOut[r.OriginKey()]++
		}
		if models.InMonth(r.ToDate, monthStart, monthEnd) {
			idx.MovedIn[r.DestinationKey()]++
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Slot == nil || !models.InMonth(rec.Date, monthStart, monthEnd) {
			continue
		}
		key := models.OverrideKey(rec.Date, models.SlotKey(rec.ProfessorID, *rec.Slot))
		switch {
		case rec.Origin == models.AttendanceOriginAdhoc && !rec.Removed():
			idx.AdhocIn[key]++
		case rec.Origin == models.AttendanceOriginRegular && rec.Removed():
			idx.ExplicitlyRemoved[key]++
		}
	}

	return idx
}
