package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/atelierworks/atelier-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceMockColumns() []string {
	return []string{
		"id", "enrollment_id", "adhoc_session_id", "student_id", "professor_id", "branch_id", "date", "status", "origin",
		"day_of_week", "start_minute", "end_minute", "slot_capacity", "state", "reschedule_id", "marked_by", "marked_at",
		"created_at", "updated_at",
	}
}

func TestAttendanceRepositoryUpsertRegular(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	enrollmentID := "enr-1"
	rows := sqlmock.NewRows(attendanceMockColumns()).
		AddRow("att-1", enrollmentID, nil, "stu-1", "prof-1", "branch-1", date, models.AttendanceStatusPresent, models.AttendanceOriginRegular,
			nil, nil, nil, nil, models.RecordStateActive, nil, "stu-1", now, now, now)
	mock.ExpectQuery(`INSERT INTO attendance_records .+ ON CONFLICT \(enrollment_id, date\) WHERE origin = 'regular'`).
		WillReturnRows(rows)

	rec, err := repo.UpsertRegular(context.Background(), &models.AttendanceRecord{
		EnrollmentID: &enrollmentID,
		StudentID:    "stu-1",
		ProfessorID:  "prof-1",
		BranchID:     "branch-1",
		Date:         date,
		Status:       models.AttendanceStatusPresent,
		Origin:       models.AttendanceOriginRegular,
	})
	require.NoError(t, err)
	require.Equal(t, "att-1", rec.ID)
	require.Nil(t, rec.Slot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindActiveByOccurrence(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(attendanceMockColumns()).
		AddRow("att-2", nil, "adhoc-1", "stu-1", "prof-1", "branch-1", date, models.AttendanceStatusPresent, models.AttendanceOriginAdhoc,
			1, 600, 660, 3, models.RecordStateActive, nil, "staff-1", now, now, now)
	mock.ExpectQuery(`SELECT .+ FROM attendance_records\s+WHERE student_id = \$1 AND professor_id = \$2 AND branch_id = \$3 AND date = \$4 AND state = 'active'`).
		WithArgs("stu-1", "prof-1", "branch-1", date).
		WillReturnRows(rows)

	rec, err := repo.FindActiveByOccurrence(context.Background(), "stu-1", "prof-1", "branch-1", date)
	require.NoError(t, err)
	require.NotNil(t, rec.Slot)
	require.Equal(t, 600, rec.Slot.StartMinute)
	require.Equal(t, models.AttendanceOriginAdhoc, rec.Origin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListOverrideRecordsForProfessor(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	now := time.Now().UTC()
	removedDate := time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC)
	enrollmentID := "enr-1"
	rows := sqlmock.NewRows(attendanceMockColumns()).
		AddRow("att-3", enrollmentID, nil, "stu-1", "prof-1", "branch-1", removedDate, models.AttendanceStatusAbsent, models.AttendanceOriginRegular,
			1, 840, 900, 3, models.RecordStateRemoved, nil, "staff-1", now, now, now)
	mock.ExpectQuery(`SELECT .+ FROM attendance_records\s+WHERE professor_id = \$1 AND date >= \$2 AND date < \$3 AND day_of_week IS NOT NULL`).
		WithArgs("prof-1", from, to).
		WillReturnRows(rows)

	records, err := repo.ListOverrideRecordsForProfessor(context.Background(), "prof-1", from, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Removed())
	require.NotNil(t, records[0].Slot)
	require.NoError(t, mock.ExpectationsWereMet())
}
