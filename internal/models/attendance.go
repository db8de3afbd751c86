package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceOrigin distinguishes records derived from recurring enrollments
// from records created for ad-hoc sessions.
type AttendanceOrigin string

const (
	AttendanceOriginRegular AttendanceOrigin = "regular"
	AttendanceOriginAdhoc   AttendanceOrigin = "adhoc"
)

// RecordState is the attendance lifecycle. Records are never hard-deleted;
// removal is a state so historical occupancy math stays correct, and a
// removed regular record that carries a slot snapshot acts as an explicit
// single-occurrence cancellation.
type RecordState string

const (
	RecordStateActive  RecordState = "active"
	RecordStateRemoved RecordState = "removed"
)

// AttendanceRecord is the durable mark of presence or absence for one
// occurrence. Exactly one of EnrollmentID and AdhocSessionID is set. Writes
// are upserts keyed by (enrollment_id, date) for regular records and by
// (student_id, professor_id, branch_id, date) for ad-hoc records.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	EnrollmentID   *string          `db:"enrollment_id" json:"enrollment_id,omitempty"`
	AdhocSessionID *string          `db:"adhoc_session_id" json:"adhoc_session_id,omitempty"`
	StudentID      string           `db:"student_id" json:"student_id"`
	ProfessorID    string           `db:"professor_id" json:"professor_id"`
	BranchID       string           `db:"branch_id" json:"branch_id"`
	Date           time.Time        `db:"date" json:"date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Origin         AttendanceOrigin `db:"origin" json:"origin"`
	Slot           *WeeklySlot      `db:"-" json:"slot,omitempty"`
	State          RecordState      `db:"state" json:"state"`
	RescheduleID   *string          `db:"reschedule_id" json:"reschedule_id,omitempty"`
	MarkedBy       *string          `db:"marked_by" json:"marked_by,omitempty"`
	MarkedAt       *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Removed reports whether the record has been soft-deleted.
func (r *AttendanceRecord) Removed() bool {
	return r.State == RecordStateRemoved
}
