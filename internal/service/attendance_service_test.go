package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/repository"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type attendanceAdminRepoMock struct {
	record   *models.AttendanceRecord
	upserted *models.AttendanceRecord
	removed  []string
}

func (m *attendanceAdminRepoMock) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	if m.record == nil || m.record.ID != id {
		return nil, sql.ErrNoRows
	}
	rec := *m.record
	return &rec, nil
}

func (m *attendanceAdminRepoMock) UpsertRegular(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = "att-new"
	}
	stored := *rec
	m.upserted = &stored
	m.record = &stored
	return &stored, nil
}

func (m *attendanceAdminRepoMock) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string, markedAt time.Time) error {
	if m.record != nil && m.record.ID == id {
		m.record.Status = status
	}
	return nil
}

func (m *attendanceAdminRepoMock) SoftRemove(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	if m.record != nil && m.record.ID == id {
		m.record.State = models.RecordStateRemoved
	}
	return nil
}

func (m *attendanceAdminRepoMock) List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	if m.record == nil {
		return nil, 0, nil
	}
	return []models.AttendanceRecord{*m.record}, 1, nil
}

type attendanceEnrollmentMock struct {
	enrollment *models.Enrollment
}

func (m *attendanceEnrollmentMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	e := *m.enrollment
	return &e, nil
}

type attendanceFixture struct {
	svc        *AttendanceService
	repo       *attendanceAdminRepoMock
	enrollment *attendanceEnrollmentMock
	slot       models.WeeklySlot
}

func newAttendanceFixture() *attendanceFixture {
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	f := &attendanceFixture{
		repo: &attendanceAdminRepoMock{},
		enrollment: &attendanceEnrollmentMock{enrollment: &models.Enrollment{
			ID: "enr-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
			Year: 2025, Month: 3, State: models.EnrollmentStateActive, Assigned: true,
			Slots: []models.WeeklySlot{slot},
		}},
		slot: slot,
	}
	f.svc = NewAttendanceService(f.repo, f.enrollment, nil, nil, zap.NewNop())
	return f
}

func markOccurrenceRequest() models.MarkOccurrenceRequest {
	return models.MarkOccurrenceRequest{
		EnrollmentID: "enr-1",
		Date:         time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Slot:         models.SlotInput{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 1},
		Status:       models.AttendanceStatusPresent,
	}
}

func TestMarkOccurrenceCreatesRecordWithSlotSnapshot(t *testing.T) {
	f := newAttendanceFixture()

	rec, err := f.svc.MarkOccurrence(context.Background(), markOccurrenceRequest(), "staff-1")
	require.NoError(t, err)
	require.NotNil(t, f.repo.upserted)
	assert.Equal(t, models.AttendanceOriginRegular, rec.Origin)
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	require.NotNil(t, rec.Slot, "lazily created record carries the enrollment's slot snapshot")
	assert.Equal(t, 2, rec.Slot.Capacity, "snapshot capacity comes from the enrollment, not the caller")
	// The stored date is the occurrence's start instant, not midnight.
	assert.True(t, rec.Date.Equal(time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)))
}

func TestMarkOccurrenceRejectsForeignSlot(t *testing.T) {
	f := newAttendanceFixture()
	req := markOccurrenceRequest()
	req.Date = time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	req.Slot = models.SlotInput{DayOfWeek: 3, StartMinute: 600, EndMinute: 720, Capacity: 1}

	_, err := f.svc.MarkOccurrence(context.Background(), req, "staff-1")
	assertErrorCode(t, err, appErrors.ErrSlotNotInSchedule)
}

func TestMarkOccurrenceRejectsWeekdayMismatch(t *testing.T) {
	f := newAttendanceFixture()
	req := markOccurrenceRequest()
	// 2025-03-11 is a Tuesday; the slot runs on Mondays.
	req.Date = time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.MarkOccurrence(context.Background(), req, "staff-1")
	assertErrorCode(t, err, appErrors.ErrValidation)
}

func TestMarkOccurrenceRejectsInactiveEnrollment(t *testing.T) {
	f := newAttendanceFixture()
	f.enrollment.enrollment.State = models.EnrollmentStateCancelled

	_, err := f.svc.MarkOccurrence(context.Background(), markOccurrenceRequest(), "staff-1")
	assertErrorCode(t, err, appErrors.ErrConflict)
}

func TestMarkOccurrenceUnknownEnrollment(t *testing.T) {
	f := newAttendanceFixture()
	req := markOccurrenceRequest()
	req.EnrollmentID = "missing"

	_, err := f.svc.MarkOccurrence(context.Background(), req, "staff-1")
	assertErrorCode(t, err, appErrors.ErrNotFound)
}

// Removing a lazily created regular record cancels that single class date:
// the snapshot-carrying removed record feeds ExplicitlyRemoved, and the
// student-scoped resolver drops the base occurrence.
func TestRemovedMarkCancelsSingleOccurrence(t *testing.T) {
	f := newAttendanceFixture()

	rec, err := f.svc.MarkOccurrence(context.Background(), markOccurrenceRequest(), "staff-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(context.Background(), rec.ID))
	require.Equal(t, []string{rec.ID}, f.repo.removed)

	monthStart, monthEnd := models.MonthRange(2025, time.March)
	idx := BuildOverrideIndex(nil, []models.AttendanceRecord{*f.repo.record}, monthStart, monthEnd)
	require.Len(t, idx.ExplicitlyRemoved, 1)

	slotKey := models.SlotKey("prof-1", f.slot)
	base := models.Occurrence{
		Start:       rec.Date,
		End:         rec.Date.Add(2 * time.Hour),
		ProfessorID: "prof-1",
		BranchID:    "branch-1",
		SlotKey:     slotKey,
		DayOfWeek:   1,
		Capacity:    2,
		Origin:      models.OriginBase,
	}
	assert.Empty(t, ResolveOccurrences([]models.Occurrence{base}, idx, true),
		"cancelled date disappears from the student view")
	assert.Len(t, ResolveOccurrences([]models.Occurrence{base}, idx, false), 1,
		"the class itself still takes place for everyone else")
	assert.Equal(t, 1, EffectiveOccupancy(2, idx, rec.Date, slotKey), "the seat is freed")
}

func TestMarkRejectsRemovedRecord(t *testing.T) {
	f := newAttendanceFixture()
	f.repo.record = &models.AttendanceRecord{
		ID: "att-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
		Date:   time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC),
		Origin: models.AttendanceOriginRegular, State: models.RecordStateRemoved,
	}

	_, err := f.svc.Mark(context.Background(), "att-1", models.MarkAttendanceRequest{Status: models.AttendanceStatusPresent}, "staff-1")
	assertErrorCode(t, err, appErrors.ErrConflict)
}
