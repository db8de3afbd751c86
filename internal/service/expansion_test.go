package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierworks/atelier-api/internal/models"
)

func TestExpandSlotCapsWeekdaysAtFour(t *testing.T) {
	// March 2025 has 5 Mondays (3, 10, 17, 24, 31).
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	windows := ExpandSlot(slot, 2025, time.March, DefaultExpansionPolicy)

	require.Len(t, windows, 4)
	assert.Equal(t, time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC), windows[0].Start)
	assert.Equal(t, time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC), windows[0].End)
	assert.Equal(t, time.Date(2025, time.March, 24, 10, 0, 0, 0, time.UTC), windows[3].Start)
}

func TestExpandSlotSundaysUncapped(t *testing.T) {
	// March 2025 has 5 Sundays (2, 9, 16, 23, 30).
	slot := models.WeeklySlot{DayOfWeek: 0, StartMinute: 540, EndMinute: 600, Capacity: 3}
	windows := ExpandSlot(slot, 2025, time.March, DefaultExpansionPolicy)

	require.Len(t, windows, 5)
	assert.Equal(t, time.Date(2025, time.March, 30, 9, 0, 0, 0, time.UTC), windows[4].Start)
}

func TestExpandSlotSundayCapWhenPolicyApplies(t *testing.T) {
	slot := models.WeeklySlot{DayOfWeek: 0, StartMinute: 540, EndMinute: 600, Capacity: 3}
	windows := ExpandSlot(slot, 2025, time.March, ExpansionPolicy{WeekdayCap: 4, CapsSundays: true})
	assert.Len(t, windows, 4)
}

func TestExpandSlotShortMonth(t *testing.T) {
	// February 2025: four Fridays (7, 14, 21, 28) — cap never truncates.
	slot := models.WeeklySlot{DayOfWeek: 5, StartMinute: 840, EndMinute: 900, Capacity: 1}
	windows := ExpandSlot(slot, 2025, time.February, DefaultExpansionPolicy)

	require.Len(t, windows, 4)
	for _, w := range windows {
		assert.Equal(t, time.Friday, w.Start.Weekday())
		assert.Equal(t, time.February, w.Start.Month())
	}
}

func TestExpandSlotFirstDayMatchesWeekday(t *testing.T) {
	// 1 June 2025 is a Sunday, so the very first day is an occurrence.
	slot := models.WeeklySlot{DayOfWeek: 0, StartMinute: 0, EndMinute: 60, Capacity: 1}
	windows := ExpandSlot(slot, 2025, time.June, DefaultExpansionPolicy)

	require.NotEmpty(t, windows)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), windows[0].Start)
	assert.Len(t, windows, 5)
}

func TestExpandSlotInvalidSlot(t *testing.T) {
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 720, EndMinute: 600, Capacity: 1}
	assert.Nil(t, ExpandSlot(slot, 2025, time.March, DefaultExpansionPolicy))
}

func TestExpandSlotAllWindowsInsideMonth(t *testing.T) {
	for dow := 0; dow <= 6; dow++ {
		slot := models.WeeklySlot{DayOfWeek: dow, StartMinute: 480, EndMinute: 540, Capacity: 1}
		for month := time.January; month <= time.December; month++ {
			for _, w := range ExpandSlot(slot, 2025, month, DefaultExpansionPolicy) {
				assert.Equal(t, month, w.Start.Month())
				assert.Equal(t, dow, int(w.Start.Weekday()))
				assert.True(t, w.End.After(w.Start))
			}
		}
	}
}
