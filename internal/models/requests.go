package models

import "time"

// SlotInput is a weekly slot as submitted by API callers.
type SlotInput struct {
	DayOfWeek   int `json:"day_of_week" validate:"min=0,max=6"`
	StartMinute int `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int `json:"end_minute" validate:"min=1,max=1440,gtfield=StartMinute"`
	Capacity    int `json:"capacity" validate:"min=1"`
}

// Slot converts the input into its domain representation.
func (s SlotInput) Slot() WeeklySlot {
	return WeeklySlot{DayOfWeek: s.DayOfWeek, StartMinute: s.StartMinute, EndMinute: s.EndMinute, Capacity: s.Capacity}
}

// CreateScheduleRequest opens a new schedule version for a professor.
type CreateScheduleRequest struct {
	ProfessorID   string      `json:"professor_id" validate:"required"`
	BranchID      string      `json:"branch_id" validate:"required"`
	EffectiveFrom time.Time   `json:"effective_from" validate:"required"`
	Slots         []SlotInput `json:"slots" validate:"required,min=1,dive"`
}

// CreateEnrollmentRequest subscribes a student to a professor for one month.
type CreateEnrollmentRequest struct {
	StudentID   string      `json:"student_id" validate:"required"`
	ProfessorID string      `json:"professor_id" validate:"required"`
	BranchID    string      `json:"branch_id" validate:"required"`
	Year        int         `json:"year" validate:"required,min=2000,max=2200"`
	Month       int         `json:"month" validate:"required,min=1,max=12"`
	Slots       []SlotInput `json:"slots" validate:"required,min=1,max=2,dive"`
}

// ChangeEnrollmentSlotsRequest replaces an enrollment's chosen slots.
type ChangeEnrollmentSlotsRequest struct {
	Slots []SlotInput `json:"slots" validate:"required,min=1,max=2,dive"`
}

// CreateRescheduleRequest moves one occurrence of an enrollment.
type CreateRescheduleRequest struct {
	EnrollmentID  string    `json:"enrollment_id" validate:"required"`
	ToProfessorID string    `json:"to_professor_id" validate:"required"`
	FromDate      time.Time `json:"from_date" validate:"required"`
	ToDate        time.Time `json:"to_date" validate:"required"`
	SlotFrom      SlotInput `json:"slot_from" validate:"required"`
	SlotTo        SlotInput `json:"slot_to" validate:"required"`
	Reason        *string   `json:"reason,omitempty"`
}

// CreateAdhocSessionRequest adds a one-off class with its own capacity.
type CreateAdhocSessionRequest struct {
	ProfessorID string    `json:"professor_id" validate:"required"`
	BranchID    string    `json:"branch_id" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	Slot        SlotInput `json:"slot" validate:"required"`
}

// RegisterAdhocParticipantRequest registers a walk-in for an ad-hoc session.
type RegisterAdhocParticipantRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// MarkOccurrenceRequest marks attendance for one concrete occurrence of an
// enrollment, creating the regular record lazily when none exists yet.
type MarkOccurrenceRequest struct {
	EnrollmentID string           `json:"enrollment_id" validate:"required"`
	Date         time.Time        `json:"date" validate:"required"`
	Slot         SlotInput        `json:"slot" validate:"required"`
	Status       AttendanceStatus `json:"status" validate:"required,oneof=present absent excused"`
}

// MarkAttendanceRequest sets the status for an attendance record.
type MarkAttendanceRequest struct {
	Status AttendanceStatus `json:"status" validate:"required,oneof=present absent excused"`
}

// CheckInRequest carries the opaque check-in token.
type CheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

// IssueTokenRequest asks for a signed check-in token for one occurrence.
type IssueTokenRequest struct {
	BranchID     string    `json:"branch_id" validate:"required"`
	Start        time.Time `json:"start" validate:"required"`
	SlotKey      string    `json:"slot_key" validate:"required"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
}
