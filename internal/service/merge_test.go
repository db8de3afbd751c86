package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierworks/atelier-api/internal/models"
)

func TestEffectiveOccupancyNeverNegative(t *testing.T) {
	idx := NewOverrideIndex()
	day := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	key := "prof-1|1|600|720"
	idx.MovedOut[models.OverrideKey(day, key)] = 5

	assert.Equal(t, 0, EffectiveOccupancy(2, idx, day, key))
}

func TestEffectiveOccupancyFormula(t *testing.T) {
	day := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	key := "prof-1|1|600|720"
	overrideKey := models.OverrideKey(day, key)

	idx := NewOverrideIndex()
	idx.MovedOut[overrideKey] = 1
	idx.MovedIn[overrideKey] = 2
	idx.AdhocIn[overrideKey] = 1
	idx.ExplicitlyRemoved[overrideKey] = 1

	// 3 - 1 + 2 + 1 - 1
	assert.Equal(t, 4, EffectiveOccupancy(3, idx, day, key))
}

func TestAnnotateOccupancyClampsCapacityLeft(t *testing.T) {
	day := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	occ := models.Occurrence{Start: day, SlotKey: "prof-1|1|600|720", Capacity: 2}

	idx := NewOverrideIndex()
	idx.AdhocIn[models.OverrideKey(day, occ.SlotKey)] = 3

	AnnotateOccupancy(&occ, 2, idx)

	assert.Equal(t, 5, occ.Taken)
	assert.Equal(t, 0, occ.CapacityLeft)
	assert.Equal(t, models.OccurrenceFull, occ.Status)
}

func baseOccurrence(day time.Time, slotKey string) models.Occurrence {
	return models.Occurrence{
		Start:   day,
		End:     day.Add(2 * time.Hour),
		SlotKey: slotKey,
		Origin:  models.OriginBase,
	}
}

func TestResolveOccurrencesPriorityMerge(t *testing.T) {
	day := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	key := "prof-1|1|600|720"

	candidates := []models.Occurrence{
		baseOccurrence(day, key),
		{Start: day, End: day.Add(2 * time.Hour), SlotKey: key, Origin: models.OriginAdhoc},
		{Start: day, End: day.Add(2 * time.Hour), SlotKey: key, Origin: models.OriginRescheduleIn},
	}

	resolved := ResolveOccurrences(candidates, NewOverrideIndex(), false)

	require.Len(t, resolved, 1)
	assert.Equal(t, models.OriginRescheduleIn, resolved[0].Origin)
}

func TestResolveOccurrencesDropSupersededOnlyWhenAsked(t *testing.T) {
	day := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	key := "prof-1|1|600|720"
	idx := NewOverrideIndex()
	idx.MovedOut[models.OverrideKey(day, key)] = 1

	kept := ResolveOccurrences([]models.Occurrence{baseOccurrence(day, key)}, idx, false)
	require.Len(t, kept, 1, "professor view keeps the class; only its occupancy drops")

	dropped := ResolveOccurrences([]models.Occurrence{baseOccurrence(day, key)}, idx, true)
	assert.Empty(t, dropped, "student view drops an occurrence the student moved out of")
}

func TestResolveOccurrencesSortedByStart(t *testing.T) {
	d1 := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, time.March, 17, 10, 0, 0, 0, time.UTC)

	candidates := []models.Occurrence{
		baseOccurrence(d3, "prof-1|1|600|720"),
		baseOccurrence(d1, "prof-1|1|600|720"),
		baseOccurrence(d2, "prof-1|1|600|720"),
	}

	resolved := ResolveOccurrences(candidates, NewOverrideIndex(), false)

	require.Len(t, resolved, 3)
	assert.True(t, resolved[0].Start.Before(resolved[1].Start))
	assert.True(t, resolved[1].Start.Before(resolved[2].Start))
}

// Full-month walkthrough: a Monday 10:00-12:00 slot with capacity 2 and two
// assigned enrollments fills every occurrence.
func TestResolveMonthFullSlot(t *testing.T) {
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	key := models.SlotKey("prof-1", slot)

	var candidates []models.Occurrence
	for _, w := range ExpandSlot(slot, 2025, time.March, DefaultExpansionPolicy) {
		occ := baseOccurrence(w.Start, key)
		occ.Capacity = slot.Capacity
		candidates = append(candidates, occ)
	}

	idx := NewOverrideIndex()
	resolved := ResolveOccurrences(candidates, idx, false)

	require.Len(t, resolved, 4)
	for i := range resolved {
		AnnotateOccupancy(&resolved[i], 2, idx)
		assert.Equal(t, 0, resolved[i].CapacityLeft)
		assert.Equal(t, models.OccurrenceFull, resolved[i].Status)
	}
}

// One enrollment moves its 2nd Monday to the following Wednesday: the Monday
// frees a seat while a reschedule-in occurrence appears at the destination.
func TestResolveMonthWithReschedule(t *testing.T) {
	slotFrom := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	slotTo := models.WeeklySlot{DayOfWeek: 3, StartMinute: 600, EndMinute: 720, Capacity: 2}
	keyFrom := models.SlotKey("prof-1", slotFrom)
	keyTo := models.SlotKey("prof-1", slotTo)

	secondMonday := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	wednesday := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	reschedule := models.RescheduleRequest{
		FromProfessorID: "prof-1",
		ToProfessorID:   "prof-1",
		FromDate:        secondMonday,
		ToDate:          wednesday,
		SlotFrom:        slotFrom,
		SlotTo:          slotTo,
	}
	monthStart, monthEnd := models.MonthRange(2025, time.March)
	idx := BuildOverrideIndex([]models.RescheduleRequest{reschedule}, nil, monthStart, monthEnd)

	var candidates []models.Occurrence
	for _, w := range ExpandSlot(slotFrom, 2025, time.March, DefaultExpansionPolicy) {
		occ := baseOccurrence(w.Start, keyFrom)
		occ.Capacity = slotFrom.Capacity
		candidates = append(candidates, occ)
	}
	candidates = append(candidates, models.Occurrence{
		Start:    wednesday,
		End:      wednesday.Add(2 * time.Hour),
		SlotKey:  keyTo,
		Capacity: slotTo.Capacity,
		Origin:   models.OriginRescheduleIn,
	})

	resolved := ResolveOccurrences(candidates, idx, false)
	require.Len(t, resolved, 5)

	for i := range resolved {
		base := 0
		if resolved[i].SlotKey == keyFrom {
			base = 2
		}
		AnnotateOccupancy(&resolved[i], base, idx)
	}

	for _, occ := range resolved {
		switch {
		case occ.Start.Equal(secondMonday):
			assert.Equal(t, 1, occ.Taken)
			assert.Equal(t, 1, occ.CapacityLeft)
		case occ.Start.Equal(wednesday):
			assert.Equal(t, models.OriginRescheduleIn, occ.Origin)
			assert.Equal(t, 1, occ.Taken)
			assert.Equal(t, 1, occ.CapacityLeft)
		default:
			assert.Equal(t, 0, occ.CapacityLeft)
		}
	}
}

// An ad-hoc session on a date with no recurring slot stands alone with its
// own capacity.
func TestResolveMonthStandaloneAdhoc(t *testing.T) {
	slot := models.WeeklySlot{DayOfWeek: 6, StartMinute: 540, EndMinute: 660, Capacity: 5}
	session := models.AdhocSession{
		ID:          "adhoc-1",
		ProfessorID: "prof-1",
		BranchID:    "branch-1",
		Date:        time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC),
		Slot:        slot,
		Capacity:    5,
	}

	candidates := []models.Occurrence{adhocOccurrence(&session)}
	idx := NewOverrideIndex()

	resolved := ResolveOccurrences(candidates, idx, false)
	require.Len(t, resolved, 1)

	AnnotateOccupancy(&resolved[0], 0, idx)
	assert.Equal(t, models.OriginAdhoc, resolved[0].Origin)
	assert.Equal(t, 5, resolved[0].CapacityLeft)
	assert.Equal(t, models.OccurrenceAvailable, resolved[0].Status)
	assert.Equal(t, time.Date(2025, time.March, 15, 11, 0, 0, 0, time.UTC), resolved[0].End)
}
