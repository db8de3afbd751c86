package models

import "time"

// RescheduleActor distinguishes who created a reschedule request. Students
// are limited to one request per enrollment and month; staff may overwrite.
type RescheduleActor string

const (
	RescheduleByStudent RescheduleActor = "student"
	RescheduleByStaff   RescheduleActor = "staff"
)

// RescheduleRequest moves exactly one concrete occurrence of an enrollment
// to a different date and slot, optionally with a different professor. It
// never shifts the enrollment's monthly capacity, only the occupancy of the
// two specific dates involved.
type RescheduleRequest struct {
	ID              string          `db:"id" json:"id"`
	EnrollmentID    string          `db:"enrollment_id" json:"enrollment_id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	BranchID        string          `db:"branch_id" json:"branch_id"`
	FromProfessorID string          `db:"from_professor_id" json:"from_professor_id"`
	ToProfessorID   string          `db:"to_professor_id" json:"to_professor_id"`
	Year            int             `db:"year" json:"year"`
	Month           int             `db:"month" json:"month"`
	FromDate        time.Time       `db:"from_date" json:"from_date"`
	ToDate          time.Time       `db:"to_date" json:"to_date"`
	SlotFrom        WeeklySlot      `db:"-" json:"slot_from"`
	SlotTo          WeeklySlot      `db:"-" json:"slot_to"`
	Reason          *string         `db:"reason" json:"reason,omitempty"`
	RequestedBy     RescheduleActor `db:"requested_by" json:"requested_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OriginKey returns the override key for the occurrence the request vacates.
func (r *RescheduleRequest) OriginKey() string {
	return OverrideKey(r.FromDate, SlotKey(r.FromProfessorID, r.SlotFrom))
}

// DestinationKey returns the override key for the replacement occurrence.
func (r *RescheduleRequest) DestinationKey() string {
	return OverrideKey(r.ToDate, SlotKey(r.ToProfessorID, r.SlotTo))
}
