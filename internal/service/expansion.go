package service

import (
	"time"

	"github.com/atelierworks/atelier-api/internal/models"
)

// ExpansionPolicy bounds how many occurrences a weekly slot yields within a
// month. The long-standing business rule caps every weekday at 4 occurrences
// while Sundays emit every matching date; the asymmetry is intentional and
// kept configurable so it stays independently testable.
type ExpansionPolicy struct {
	WeekdayCap  int
	CapsSundays bool
}

// DefaultExpansionPolicy reproduces the production rule: at most 4
// occurrences for Monday through Saturday, uncapped Sundays.
var DefaultExpansionPolicy = ExpansionPolicy{WeekdayCap: 4, CapsSundays: false}

// OccurrenceWindow is one concrete start/end pair produced by expansion.
type OccurrenceWindow struct {
	Start time.Time
	End   time.Time
}

// ExpandSlot turns a weekly slot into the ordered concrete windows it
// produces within the given month. Pure function of its inputs.
func ExpandSlot(slot models.WeeklySlot, year int, month time.Month, policy ExpansionPolicy) []OccurrenceWindow {
	if !slot.Valid() {
		return nil
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (slot.DayOfWeek - int(first.Weekday()) + 7) % 7
	day := first.AddDate(0, 0, offset)

	capped := policy.WeekdayCap > 0 && (slot.DayOfWeek != 0 || policy.CapsSundays)

	var windows []OccurrenceWindow
	for day.Month() == month {
		if capped && len(windows) >= policy.WeekdayCap {
			break
		}
		windows = append(windows, OccurrenceWindow{
			Start: day.Add(time.Duration(slot.StartMinute) * time.Minute),
			End:   day.Add(time.Duration(slot.EndMinute) * time.Minute),
		})
		day = day.AddDate(0, 0, 7)
	}
	return windows
}
