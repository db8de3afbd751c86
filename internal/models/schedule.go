package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeeklySlot is a recurring weekly time range with a seat capacity.
// DayOfWeek follows time.Weekday numbering: 0 is Sunday.
type WeeklySlot struct {
	DayOfWeek   int `db:"day_of_week" json:"day_of_week"`
	StartMinute int `db:"start_minute" json:"start_minute"`
	EndMinute   int `db:"end_minute" json:"end_minute"`
	Capacity    int `db:"capacity" json:"capacity"`
}

// Valid reports whether the slot describes a well-formed time range.
func (s WeeklySlot) Valid() bool {
	return s.DayOfWeek >= 0 && s.DayOfWeek <= 6 &&
		s.StartMinute >= 0 && s.EndMinute <= 24*60 &&
		s.StartMinute < s.EndMinute
}

// SameRange reports whether two slots cover the identical weekly range,
// ignoring capacity.
func (s WeeklySlot) SameRange(other WeeklySlot) bool {
	return s.DayOfWeek == other.DayOfWeek &&
		s.StartMinute == other.StartMinute &&
		s.EndMinute == other.EndMinute
}

// Overlaps reports whether two slots on the same day share any minutes.
func (s WeeklySlot) Overlaps(other WeeklySlot) bool {
	if s.DayOfWeek != other.DayOfWeek {
		return false
	}
	return s.StartMinute < other.EndMinute && other.StartMinute < s.EndMinute
}

// SlotKey serialises the professor and weekly range into the stable string
// identifier used across override maps, occurrence listings and tokens.
func SlotKey(professorID string, slot WeeklySlot) string {
	return fmt.Sprintf("%s|%d|%d|%d", professorID, slot.DayOfWeek, slot.StartMinute, slot.EndMinute)
}

// ParseSlotKey splits a slot key back into the professor id and weekly range.
// The capacity component is not part of the key and is left zero.
func ParseSlotKey(key string) (string, WeeklySlot, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 4 || parts[0] == "" {
		return "", WeeklySlot{}, fmt.Errorf("invalid slot key %q", key)
	}
	var slot WeeklySlot
	var err error
	if slot.DayOfWeek, err = strconv.Atoi(parts[1]); err != nil {
		return "", WeeklySlot{}, fmt.Errorf("invalid slot key %q", key)
	}
	if slot.StartMinute, err = strconv.Atoi(parts[2]); err != nil {
		return "", WeeklySlot{}, fmt.Errorf("invalid slot key %q", key)
	}
	if slot.EndMinute, err = strconv.Atoi(parts[3]); err != nil {
		return "", WeeklySlot{}, fmt.Errorf("invalid slot key %q", key)
	}
	if !slot.Valid() {
		return "", WeeklySlot{}, fmt.Errorf("invalid slot key %q", key)
	}
	return parts[0], slot, nil
}

// WeeklyScheduleVersion is one immutable revision of a professor's weekly
// availability, effective over the half-open [EffectiveFrom, EffectiveTo)
// date range. A nil EffectiveTo means open-ended. Changing a schedule closes
// the open version and opens a new one; history is never edited in place.
type WeeklyScheduleVersion struct {
	ID            string       `db:"id" json:"id"`
	ProfessorID   string       `db:"professor_id" json:"professor_id"`
	BranchID      string       `db:"branch_id" json:"branch_id"`
	EffectiveFrom time.Time    `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time   `db:"effective_to" json:"effective_to,omitempty"`
	Slots         []WeeklySlot `db:"-" json:"slots"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// Covers reports whether the version is effective at the given instant.
func (v *WeeklyScheduleVersion) Covers(t time.Time) bool {
	if t.Before(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || t.Before(*v.EffectiveTo)
}

// FindSlot returns the version slot matching the given weekly range.
func (v *WeeklyScheduleVersion) FindSlot(slot WeeklySlot) (WeeklySlot, bool) {
	for _, s := range v.Slots {
		if s.SameRange(slot) {
			return s, true
		}
	}
	return WeeklySlot{}, false
}
