package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/token"
)

type checkinAttendanceMock struct {
	records map[string]*models.AttendanceRecord
	marked  []string
	upserts int
}

func occurrenceKey(studentID, professorID, branchID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", studentID, professorID, branchID, date.Unix())
}

func (m *checkinAttendanceMock) FindActiveByOccurrence(ctx context.Context, studentID, professorID, branchID string, date time.Time) (*models.AttendanceRecord, error) {
	if rec, ok := m.records[occurrenceKey(studentID, professorID, branchID, date)]; ok {
		return rec, nil
	}
	return nil, sql.ErrNoRows
}

func (m *checkinAttendanceMock) UpsertRegular(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if m.records == nil {
		m.records = map[string]*models.AttendanceRecord{}
	}
	m.upserts++
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("att-%d", m.upserts)
	}
	stored := *rec
	m.records[occurrenceKey(rec.StudentID, rec.ProfessorID, rec.BranchID, rec.Date)] = &stored
	return &stored, nil
}

func (m *checkinAttendanceMock) MarkPresent(ctx context.Context, id, markedBy string, markedAt time.Time) error {
	m.marked = append(m.marked, id)
	for _, rec := range m.records {
		if rec.ID == id {
			rec.Status = models.AttendanceStatusPresent
		}
	}
	return nil
}

type checkinEnrollmentMock struct {
	enrollment *models.Enrollment
}

func (m *checkinEnrollmentMock) FindActiveAssigned(ctx context.Context, studentID, professorID, branchID string, year, month int) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	e := *m.enrollment
	return &e, nil
}

type checkinRescheduleMock struct {
	reschedules []models.RescheduleRequest
}

func (m *checkinRescheduleMock) ListForStudentDestination(ctx context.Context, studentID, branchID string, toDate time.Time) ([]models.RescheduleRequest, error) {
	var matched []models.RescheduleRequest
	for _, r := range m.reschedules {
		if r.ToDate.Equal(toDate) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

type checkinScheduleMock struct {
	version *models.WeeklyScheduleVersion
}

func (m *checkinScheduleMock) VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error) {
	if m.version == nil {
		return nil, sql.ErrNoRows
	}
	return m.version, nil
}

type checkinFixture struct {
	svc        *CheckInService
	attendance *checkinAttendanceMock
	enrollment *checkinEnrollmentMock
	reschedule *checkinRescheduleMock
	schedule   *checkinScheduleMock
	codec      *token.Codec
	slot       models.WeeklySlot
	start      time.Time
	rawToken   string
}

func newCheckinFixture(t *testing.T) *checkinFixture {
	t.Helper()
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	start := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	codec := token.NewCodec("test-secret")

	f := &checkinFixture{
		attendance: &checkinAttendanceMock{},
		enrollment: &checkinEnrollmentMock{},
		reschedule: &checkinRescheduleMock{},
		schedule: &checkinScheduleMock{version: &models.WeeklyScheduleVersion{
			ID:            "ver-1",
			ProfessorID:   "prof-1",
			BranchID:      "branch-1",
			EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			Slots:         []models.WeeklySlot{slot},
		}},
		codec: codec,
		slot:  slot,
		start: start,
	}
	f.svc = NewCheckInService(f.attendance, f.enrollment, f.reschedule, f.schedule, codec,
		2*time.Hour+45*time.Minute, 6*time.Hour, nil, nil, zap.NewNop())
	f.svc.now = func() time.Time { return start.Add(3 * time.Hour) }

	raw, err := codec.Encode(token.Envelope{
		Branch:  "branch-1",
		Start:   start.Format(time.RFC3339),
		SlotKey: models.SlotKey("prof-1", slot),
	})
	require.NoError(t, err)
	f.rawToken = raw
	return f
}

func assertErrorCode(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, want.Code, appErr.Code)
}

func TestCheckInRejectsMalformedToken(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.CheckIn(context.Background(), "garbage", "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrInvalidToken)
}

func TestCheckInRejectsTamperedToken(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.CheckIn(context.Background(), f.rawToken+"x", "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrInvalidToken)
}

func TestCheckInWindowBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		offset  time.Duration
		allowed bool
	}{
		{"just before lower bound", 2*time.Hour + 44*time.Minute + 59*time.Second, false},
		{"at lower bound", 2*time.Hour + 45*time.Minute, true},
		{"inside window", 4 * time.Hour, true},
		{"just before upper bound", 5*time.Hour + 59*time.Minute, true},
		{"at upper bound", 6 * time.Hour, false},
		{"long after", 48 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCheckinFixture(t)
			f.enrollment.enrollment = &models.Enrollment{
				ID: "enr-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
				Year: 2025, Month: 3, State: models.EnrollmentStateActive, Assigned: true,
				Slots: []models.WeeklySlot{f.slot},
			}
			f.svc.now = func() time.Time { return f.start.Add(tc.offset) }

			_, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assertErrorCode(t, err, appErrors.ErrOutOfWindow)
			}
		})
	}
}

func TestCheckInPreScheduledMatch(t *testing.T) {
	f := newCheckinFixture(t)
	f.attendance.records = map[string]*models.AttendanceRecord{
		occurrenceKey("stu-1", "prof-1", "branch-1", f.start): {
			ID: "att-existing", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
			Date: f.start, Status: models.AttendanceStatusAbsent,
			Origin: models.AttendanceOriginRegular, State: models.RecordStateActive,
		},
	}

	result, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, MatchPreScheduled, result.Match)
	assert.Equal(t, models.AttendanceStatusPresent, result.Record.Status)
	assert.Equal(t, []string{"att-existing"}, f.attendance.marked)
	assert.Zero(t, f.attendance.upserts)
}

func TestCheckInRejectsSlotNotInSchedule(t *testing.T) {
	f := newCheckinFixture(t)
	f.schedule.version.Slots = []models.WeeklySlot{{DayOfWeek: 2, StartMinute: 600, EndMinute: 720, Capacity: 2}}

	_, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrSlotNotInSchedule)
}

func TestCheckInRejectsWhenNoScheduleVersion(t *testing.T) {
	f := newCheckinFixture(t)
	f.schedule.version = nil

	_, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrSlotNotInSchedule)
}

func TestCheckInRegularEnrollmentMatch(t *testing.T) {
	f := newCheckinFixture(t)
	f.enrollment.enrollment = &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
		Year: 2025, Month: 3, State: models.EnrollmentStateActive, Assigned: true,
		Slots: []models.WeeklySlot{f.slot},
	}

	result, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, MatchRegular, result.Match)
	require.NotNil(t, result.Record.EnrollmentID)
	assert.Equal(t, "enr-1", *result.Record.EnrollmentID)
	assert.Equal(t, models.AttendanceOriginRegular, result.Record.Origin)
	assert.Equal(t, models.AttendanceStatusPresent, result.Record.Status)
	require.NotNil(t, result.Record.Slot, "record carries the schedule's slot snapshot")
	assert.Equal(t, 2, result.Record.Slot.Capacity)
}

func TestCheckInEnrollmentWithoutSlotFallsThrough(t *testing.T) {
	f := newCheckinFixture(t)
	f.enrollment.enrollment = &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
		Year: 2025, Month: 3, State: models.EnrollmentStateActive, Assigned: true,
		Slots: []models.WeeklySlot{{DayOfWeek: 4, StartMinute: 600, EndMinute: 720, Capacity: 2}},
	}

	_, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrNotEnrolled)
}

func TestCheckInRescheduleDestinationMatch(t *testing.T) {
	f := newCheckinFixture(t)
	f.reschedule.reschedules = []models.RescheduleRequest{{
		ID:              "res-1",
		EnrollmentID:    "enr-1",
		StudentID:       "stu-1",
		BranchID:        "branch-1",
		FromProfessorID: "prof-2",
		ToProfessorID:   "prof-1",
		FromDate:        f.start.AddDate(0, 0, -2),
		ToDate:          f.start,
		SlotTo:          f.slot,
	}}

	result, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, MatchReschedule, result.Match)
	require.NotNil(t, result.Record.RescheduleID)
	assert.Equal(t, "res-1", *result.Record.RescheduleID)
	require.NotNil(t, result.Record.Slot, "record carries the destination slot snapshot")
	assert.True(t, result.Record.Slot.SameRange(f.slot))
}

func TestCheckInRescheduleAcrossMonthBoundary(t *testing.T) {
	f := newCheckinFixture(t)

	// Mon Mar 31 moved to Wed Apr 2: inside the allowed span, but the move is
	// recorded under March while the destination occurrence sits in April.
	slotTo := models.WeeklySlot{DayOfWeek: 3, StartMinute: 600, EndMinute: 720, Capacity: 2}
	f.schedule.version.Slots = []models.WeeklySlot{f.slot, slotTo}
	destination := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	f.reschedule.reschedules = []models.RescheduleRequest{{
		ID:              "res-apr",
		EnrollmentID:    "enr-1",
		StudentID:       "stu-1",
		BranchID:        "branch-1",
		FromProfessorID: "prof-1",
		ToProfessorID:   "prof-1",
		Year:            2025,
		Month:           3,
		FromDate:        time.Date(2025, time.March, 31, 10, 0, 0, 0, time.UTC),
		ToDate:          destination,
		SlotFrom:        f.slot,
		SlotTo:          slotTo,
	}}

	raw, err := f.codec.Encode(token.Envelope{
		Branch:  "branch-1",
		Start:   destination.Format(time.RFC3339),
		SlotKey: models.SlotKey("prof-1", slotTo),
	})
	require.NoError(t, err)
	f.svc.now = func() time.Time { return destination.Add(3 * time.Hour) }

	result, err := f.svc.CheckIn(context.Background(), raw, "stu-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, MatchReschedule, result.Match)
	require.NotNil(t, result.Record.RescheduleID)
	assert.Equal(t, "res-apr", *result.Record.RescheduleID)
}

func TestCheckInFailsClosed(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	assertErrorCode(t, err, appErrors.ErrNotEnrolled)
	assert.Zero(t, f.attendance.upserts)
}

func TestCheckInIdempotent(t *testing.T) {
	f := newCheckinFixture(t)
	f.enrollment.enrollment = &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", ProfessorID: "prof-1", BranchID: "branch-1",
		Year: 2025, Month: 3, State: models.EnrollmentStateActive, Assigned: true,
		Slots: []models.WeeklySlot{f.slot},
	}

	first, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, MatchRegular, first.Match)

	// A replayed token finds the record created by the first attempt.
	second, err := f.svc.CheckIn(context.Background(), f.rawToken, "stu-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, MatchPreScheduled, second.Match)
	assert.Equal(t, 1, f.attendance.upserts)
	assert.Equal(t, models.AttendanceStatusPresent, second.Record.Status)
}

func TestIssueTokenRoundTrip(t *testing.T) {
	f := newCheckinFixture(t)
	raw, err := f.svc.IssueToken(context.Background(), "branch-1", f.start, models.SlotKey("prof-1", f.slot), "enr-1")
	require.NoError(t, err)

	env, err := f.codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "branch-1", env.Branch)
	assert.Equal(t, "enr-1", env.EnrollmentID)

	instant, err := env.StartInstant()
	require.NoError(t, err)
	assert.True(t, instant.Equal(f.start))
}

func TestIssueTokenRejectsMalformedSlotKey(t *testing.T) {
	f := newCheckinFixture(t)
	_, err := f.svc.IssueToken(context.Background(), "branch-1", f.start, "not-a-slot-key", "")
	assertErrorCode(t, err, appErrors.ErrValidation)
}
