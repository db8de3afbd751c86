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
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type admissionScheduleMock struct {
	version *models.WeeklyScheduleVersion
}

func (m *admissionScheduleMock) VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error) {
	if m.version == nil {
		return nil, sql.ErrNoRows
	}
	return m.version, nil
}

type admissionEnrollmentMock struct {
	occupancy []models.SlotOccupancy
}

func (m *admissionEnrollmentMock) BaseOccupancy(ctx context.Context, professorID string, year, month int) ([]models.SlotOccupancy, error) {
	return m.occupancy, nil
}

type admissionRescheduleMock struct {
	reschedules []models.RescheduleRequest
}

func (m *admissionRescheduleMock) ListTouchingProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.RescheduleRequest, error) {
	return m.reschedules, nil
}

type admissionAttendanceMock struct {
	records []models.AttendanceRecord
}

func (m *admissionAttendanceMock) ListOverrideRecordsForProfessor(ctx context.Context, professorID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

type admissionFixture struct {
	svc        *AdmissionService
	schedule   *admissionScheduleMock
	enrollment *admissionEnrollmentMock
	reschedule *admissionRescheduleMock
	attendance *admissionAttendanceMock
	slot       models.WeeklySlot
}

func newAdmissionFixture() *admissionFixture {
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	f := &admissionFixture{
		schedule: &admissionScheduleMock{version: &models.WeeklyScheduleVersion{
			ID:            "ver-1",
			ProfessorID:   "prof-1",
			BranchID:      "branch-1",
			EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			Slots:         []models.WeeklySlot{slot},
		}},
		enrollment: &admissionEnrollmentMock{},
		reschedule: &admissionRescheduleMock{},
		attendance: &admissionAttendanceMock{},
		slot:       slot,
	}
	f.svc = NewAdmissionService(f.schedule, f.enrollment, f.reschedule, f.attendance, nil, zap.NewNop())
	return f
}

func TestReserveAllowsWhenRoomLeft(t *testing.T) {
	f := newAdmissionFixture()
	f.enrollment.occupancy = []models.SlotOccupancy{{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Count: 1}}

	date := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, f.svc.Reserve(context.Background(), "prof-1", date, f.slot, 2025, time.March))
}

func TestReserveRejectsFullSlot(t *testing.T) {
	f := newAdmissionFixture()
	f.enrollment.occupancy = []models.SlotOccupancy{{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Count: 2}}

	date := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	err := f.svc.Reserve(context.Background(), "prof-1", date, f.slot, 2025, time.March)
	assertErrorCode(t, err, appErrors.ErrCapacityExceeded)
}

func TestReserveCountsDayDeltas(t *testing.T) {
	f := newAdmissionFixture()
	f.enrollment.occupancy = []models.SlotOccupancy{{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Count: 2}}

	// One of the two enrollments moved this date out, freeing a seat on this
	// day only.
	date := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	f.reschedule.reschedules = []models.RescheduleRequest{{
		FromProfessorID: "prof-1",
		ToProfessorID:   "prof-1",
		FromDate:        date,
		ToDate:          date.AddDate(0, 0, 2),
		SlotFrom:        f.slot,
		SlotTo:          models.WeeklySlot{DayOfWeek: 3, StartMinute: 600, EndMinute: 720, Capacity: 2},
	}}

	assert.NoError(t, f.svc.Reserve(context.Background(), "prof-1", date, f.slot, 2025, time.March))

	otherMonday := time.Date(2025, time.March, 17, 10, 0, 0, 0, time.UTC)
	err := f.svc.Reserve(context.Background(), "prof-1", otherMonday, f.slot, 2025, time.March)
	assertErrorCode(t, err, appErrors.ErrCapacityExceeded)
}

func TestValidateDestinationReturnsScheduleSlot(t *testing.T) {
	f := newAdmissionFixture()

	requested := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720}
	found, err := f.svc.ValidateDestination(context.Background(), "prof-1", 2025, time.March, requested)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Capacity, "capacity comes from the schedule, not the caller")
}

func TestValidateDestinationRejectsUnknownSlot(t *testing.T) {
	f := newAdmissionFixture()

	requested := models.WeeklySlot{DayOfWeek: 2, StartMinute: 600, EndMinute: 720}
	_, err := f.svc.ValidateDestination(context.Background(), "prof-1", 2025, time.March, requested)
	assertErrorCode(t, err, appErrors.ErrSlotNotInSchedule)
}

func TestValidateDestinationRejectsMissingVersion(t *testing.T) {
	f := newAdmissionFixture()
	f.schedule.version = nil

	_, err := f.svc.ValidateDestination(context.Background(), "prof-1", 2025, time.March, f.slot)
	assertErrorCode(t, err, appErrors.ErrScheduleNotFound)
}
