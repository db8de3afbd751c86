package models

import "time"

// AdhocSession is a one-off class created directly by staff, not derived
// from any recurring slot. It still counts toward the same-day/slot
// occupancy totals used by the resolver.
type AdhocSession struct {
	ID          string     `db:"id" json:"id"`
	ProfessorID string     `db:"professor_id" json:"professor_id"`
	BranchID    string     `db:"branch_id" json:"branch_id"`
	Date        time.Time  `db:"date" json:"date"`
	Slot        WeeklySlot `db:"-" json:"slot"`
	Capacity    int        `db:"capacity" json:"capacity"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SlotKey returns the stable slot identifier for the session's time range.
func (a *AdhocSession) SlotKey() string {
	return SlotKey(a.ProfessorID, a.Slot)
}
