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

type adhocSessionsMock struct {
	session *models.AdhocSession
	created *models.AdhocSession
}

func (m *adhocSessionsMock) FindByID(ctx context.Context, id string) (*models.AdhocSession, error) {
	if m.session == nil {
		return nil, sql.ErrNoRows
	}
	s := *m.session
	return &s, nil
}

func (m *adhocSessionsMock) ListByProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.AdhocSession, error) {
	if m.session == nil {
		return nil, nil
	}
	return []models.AdhocSession{*m.session}, nil
}

func (m *adhocSessionsMock) Create(ctx context.Context, session *models.AdhocSession) error {
	if session.ID == "" {
		session.ID = "adhoc-new"
	}
	m.created = session
	return nil
}

type adhocAttendanceUpsertMock struct {
	upserted *models.AttendanceRecord
}

func (m *adhocAttendanceUpsertMock) UpsertAdhoc(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = "att-new"
	}
	m.upserted = rec
	return rec, nil
}

type adhocFixture struct {
	svc        *AdhocService
	sessions   *adhocSessionsMock
	attendance *adhocAttendanceUpsertMock
	admission  *admissionFixture
}

func newAdhocFixture() *adhocFixture {
	f := &adhocFixture{
		sessions:   &adhocSessionsMock{},
		attendance: &adhocAttendanceUpsertMock{},
		admission:  newAdmissionFixture(),
	}
	f.svc = NewAdhocService(f.sessions, f.attendance, f.admission.svc, nil, nil, zap.NewNop())
	return f
}

func TestAdhocCreateSession(t *testing.T) {
	f := newAdhocFixture()

	// 2025-03-15 is a Saturday.
	session, err := f.svc.CreateSession(context.Background(), models.CreateAdhocSessionRequest{
		ProfessorID: "prof-1",
		BranchID:    "branch-1",
		Date:        time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC),
		Slot:        models.SlotInput{DayOfWeek: 6, StartMinute: 540, EndMinute: 660, Capacity: 5},
	})
	require.NoError(t, err)
	require.NotNil(t, f.sessions.created)
	assert.Equal(t, 5, session.Capacity, "session capacity comes from the slot")
}

func TestAdhocCreateSessionRejectsWeekdayMismatch(t *testing.T) {
	f := newAdhocFixture()

	_, err := f.svc.CreateSession(context.Background(), models.CreateAdhocSessionRequest{
		ProfessorID: "prof-1",
		BranchID:    "branch-1",
		Date:        time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC),
		Slot:        models.SlotInput{DayOfWeek: 1, StartMinute: 540, EndMinute: 660, Capacity: 5},
	})
	assertErrorCode(t, err, appErrors.ErrValidation)
}

func TestAdhocRegisterParticipant(t *testing.T) {
	f := newAdhocFixture()
	f.sessions.session = &models.AdhocSession{
		ID:          "adhoc-1",
		ProfessorID: "prof-1",
		BranchID:    "branch-1",
		Date:        time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC),
		Slot:        models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2},
		Capacity:    2,
	}

	rec, err := f.svc.RegisterParticipant(context.Background(), "adhoc-1", "stu-1", "staff-1")
	require.NoError(t, err)
	require.NotNil(t, f.attendance.upserted)
	assert.Equal(t, models.AttendanceOriginAdhoc, rec.Origin)
	assert.Equal(t, models.AttendanceStatusAbsent, rec.Status, "registration proves a seat, not presence")
	require.NotNil(t, rec.Slot)
	assert.Equal(t, 2, rec.Slot.Capacity)
}

func TestAdhocRegisterParticipantRejectsFullSession(t *testing.T) {
	f := newAdhocFixture()
	date := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	slot := models.WeeklySlot{DayOfWeek: 1, StartMinute: 600, EndMinute: 720, Capacity: 2}
	f.sessions.session = &models.AdhocSession{
		ID: "adhoc-1", ProfessorID: "prof-1", BranchID: "branch-1",
		Date: date, Slot: slot, Capacity: 2,
	}
	// Two active registrations already count against the session's capacity.
	f.admission.attendance.records = []models.AttendanceRecord{
		{ProfessorID: "prof-1", Date: date, Origin: models.AttendanceOriginAdhoc, State: models.RecordStateActive, Slot: &slot},
		{ProfessorID: "prof-1", Date: date, Origin: models.AttendanceOriginAdhoc, State: models.RecordStateActive, Slot: &slot},
	}

	_, err := f.svc.RegisterParticipant(context.Background(), "adhoc-1", "stu-3", "staff-1")
	assertErrorCode(t, err, appErrors.ErrCapacityExceeded)
	assert.Nil(t, f.attendance.upserted)
}

func TestAdhocRegisterParticipantUnknownSession(t *testing.T) {
	f := newAdhocFixture()

	_, err := f.svc.RegisterParticipant(context.Background(), "missing", "stu-1", "staff-1")
	assertErrorCode(t, err, appErrors.ErrNotFound)
}
