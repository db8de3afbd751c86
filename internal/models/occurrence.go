package models

import "time"

// OccurrenceOrigin tags which source produced an occurrence. Origins form a
// total priority order used by the resolver's merge: when several origins
// describe the same (day, slot key), the highest priority wins.
type OccurrenceOrigin string

const (
	OriginBase         OccurrenceOrigin = "base"
	OriginAdhoc        OccurrenceOrigin = "adhoc"
	OriginRescheduleIn OccurrenceOrigin = "reschedule-in"
)

// Priority returns the origin's merge rank; higher wins.
func (o OccurrenceOrigin) Priority() int {
	switch o {
	case OriginBase:
		return 1
	case OriginAdhoc:
		return 2
	case OriginRescheduleIn:
		return 3
	default:
		return 0
	}
}

// Valid reports whether the origin is a known value.
func (o OccurrenceOrigin) Valid() bool {
	return o.Priority() > 0
}

// OccurrenceStatus is the capacity verdict for one occurrence.
type OccurrenceStatus string

const (
	OccurrenceAvailable OccurrenceStatus = "available"
	OccurrenceFull      OccurrenceStatus = "full"
)

// Occurrence is one concrete calendar instance of a weekly slot or ad-hoc
// session, annotated with its effective occupancy for that specific day.
type Occurrence struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	ProfessorID  string           `json:"professor_id"`
	BranchID     string           `json:"branch_id"`
	SlotKey      string           `json:"slot_key"`
	DayOfWeek    int              `json:"day_of_week"`
	Capacity     int              `json:"capacity"`
	Taken        int              `json:"taken"`
	CapacityLeft int              `json:"capacity_left"`
	Status       OccurrenceStatus `json:"status"`
	Origin       OccurrenceOrigin `json:"origin"`
}

// Key returns the (day, slot key) identity the resolver de-duplicates on.
func (o *Occurrence) Key() string {
	return OverrideKey(o.Start, o.SlotKey)
}

// OverrideKey aggregates all per-date deltas for the same calendar day and
// slot key regardless of exact minute.
func OverrideKey(day time.Time, slotKey string) string {
	return DateOnly(day) + "|" + slotKey
}
