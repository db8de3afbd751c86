package models

import "time"

// EnrollmentState tracks the lifecycle of a monthly enrollment.
type EnrollmentState string

const (
	EnrollmentStateActive    EnrollmentState = "active"
	EnrollmentStateCancelled EnrollmentState = "cancelled"
)

// Valid reports whether the state is a supported value.
func (s EnrollmentState) Valid() bool {
	return s == EnrollmentStateActive || s == EnrollmentStateCancelled
}

// Enrollment is a student's monthly subscription to a professor. Slots holds
// 1-2 weekly slot snapshots copied from the schedule version valid for the
// month; an enrollment counts against capacity only while active and
// assigned.
type Enrollment struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	ProfessorID string          `db:"professor_id" json:"professor_id"`
	BranchID    string          `db:"branch_id" json:"branch_id"`
	Year        int             `db:"year" json:"year"`
	Month       int             `db:"month" json:"month"`
	State       EnrollmentState `db:"state" json:"state"`
	Assigned    bool            `db:"assigned" json:"assigned"`
	Slots       []WeeklySlot    `db:"-" json:"slots"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasSlot reports whether one of the chosen slots covers the weekly range.
func (e *Enrollment) HasSlot(slot WeeklySlot) bool {
	for _, s := range e.Slots {
		if s.SameRange(slot) {
			return true
		}
	}
	return false
}

// SlotOccupancy is one row of the base occupancy aggregation: how many
// assigned, active enrollments chose a weekly range for a month.
type SlotOccupancy struct {
	DayOfWeek   int `db:"day_of_week"`
	StartMinute int `db:"start_minute"`
	EndMinute   int `db:"end_minute"`
	Count       int `db:"count"`
}
