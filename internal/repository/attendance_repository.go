package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierworks/atelier-api/internal/models"
)

// AttendanceRepository persists attendance records. All writes are upserts
// against the unique tuple keys — (enrollment_id, date) for regular records,
// (student_id, professor_id, branch_id, date) for ad-hoc records — which
// serialises concurrent marks for the same occurrence at the store, not in
// application code.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type attendanceRow struct {
	models.AttendanceRecord
	DayOfWeek    sql.NullInt64 `db:"day_of_week"`
	StartMinute  sql.NullInt64 `db:"start_minute"`
	EndMinute    sql.NullInt64 `db:"end_minute"`
	SlotCapacity sql.NullInt64 `db:"slot_capacity"`
}

func (row *attendanceRow) toModel() models.AttendanceRecord {
	rec := row.AttendanceRecord
	if row.DayOfWeek.Valid {
		rec.Slot = &models.WeeklySlot{
			DayOfWeek:   int(row.DayOfWeek.Int64),
			StartMinute: int(row.StartMinute.Int64),
			EndMinute:   int(row.EndMinute.Int64),
			Capacity:    int(row.SlotCapacity.Int64),
		}
	}
	return rec
}

const attendanceColumns = `id, enrollment_id, adhoc_session_id, student_id, professor_id, branch_id, date, status, origin,
	day_of_week, start_minute, end_minute, slot_capacity, state, reschedule_id, marked_by, marked_at, created_at, updated_at`

// FindActiveByOccurrence loads the non-removed record for a student's
// occurrence identified by its exact start instant.
func (r *AttendanceRepository) FindActiveByOccurrence(ctx context.Context, studentID, professorID, branchID string, date time.Time) (*models.AttendanceRecord, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE student_id = $1 AND professor_id = $2 AND branch_id = $3 AND date = $4 AND state = 'active'
		ORDER BY origin ASC LIMIT 1`
	var row attendanceRow
	if err := r.db.GetContext(ctx, &row, query, studentID, professorID, branchID, date); err != nil {
		return nil, err
	}
	rec := row.toModel()
	return &rec, nil
}

// FindByID loads one record.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE id = $1`
	var row attendanceRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	rec := row.toModel()
	return &rec, nil
}

// UpsertRegular writes a regular record keyed by (enrollment_id, date).
// Re-invocation updates status and marking metadata in place, so marking is
// idempotent by construction.
func (r *AttendanceRepository) UpsertRegular(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	return r.upsert(ctx, rec, `ON CONFLICT (enrollment_id, date) WHERE origin = 'regular'
		DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state, reschedule_id = EXCLUDED.reschedule_id,
			day_of_week = COALESCE(EXCLUDED.day_of_week, attendance_records.day_of_week),
			start_minute = COALESCE(EXCLUDED.start_minute, attendance_records.start_minute),
			end_minute = COALESCE(EXCLUDED.end_minute, attendance_records.end_minute),
			slot_capacity = COALESCE(EXCLUDED.slot_capacity, attendance_records.slot_capacity),
			marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at, updated_at = EXCLUDED.updated_at`)
}

// UpsertAdhoc writes an ad-hoc record keyed by (student_id, professor_id,
// branch_id, date).
func (r *AttendanceRepository) UpsertAdhoc(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	return r.upsert(ctx, rec, `ON CONFLICT (student_id, professor_id, branch_id, date) WHERE origin = 'adhoc'
		DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state,
			marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at, updated_at = EXCLUDED.updated_at`)
}

func (r *AttendanceRepository) upsert(ctx context.Context, rec *models.AttendanceRecord, conflictClause string) (*models.AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.State == "" {
		rec.State = models.RecordStateActive
	}

	var dayOfWeek, startMinute, endMinute, slotCapacity interface{}
	if rec.Slot != nil {
		dayOfWeek = rec.Slot.DayOfWeek
		startMinute = rec.Slot.StartMinute
		endMinute = rec.Slot.EndMinute
		slotCapacity = rec.Slot.Capacity
	}

	query := `INSERT INTO attendance_records (id, enrollment_id, adhoc_session_id, student_id, professor_id, branch_id, date, status, origin,
		day_of_week, start_minute, end_minute, slot_capacity, state, reschedule_id, marked_by, marked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19) ` + conflictClause + `
		RETURNING ` + attendanceColumns
	var row attendanceRow
	if err := r.db.GetContext(ctx, &row, query,
		rec.ID, rec.EnrollmentID, rec.AdhocSessionID, rec.StudentID, rec.ProfessorID, rec.BranchID,
		rec.Date, rec.Status, rec.Origin, dayOfWeek, startMinute, endMinute, slotCapacity,
		rec.State, rec.RescheduleID, rec.MarkedBy, rec.MarkedAt, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	stored := row.toModel()
	return &stored, nil
}

// UpdateStatus stamps an existing record with a status and marking metadata.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string, markedAt time.Time) error {
	const query = `UPDATE attendance_records SET status = $1, marked_by = $2, marked_at = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, markedBy, markedAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update attendance status: %w", err)
	}
	return nil
}

// MarkPresent stamps an existing record present with marking metadata.
func (r *AttendanceRepository) MarkPresent(ctx context.Context, id, markedBy string, markedAt time.Time) error {
	return r.UpdateStatus(ctx, id, models.AttendanceStatusPresent, markedBy, markedAt)
}

// SoftRemove flips the record into the removed state. Records are never
// hard-deleted so historical occupancy math stays correct.
func (r *AttendanceRepository) SoftRemove(ctx context.Context, id string) error {
	const query = `UPDATE attendance_records SET state = 'removed', updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("soft remove attendance record: %w", err)
	}
	return nil
}

// ListOverrideRecordsForProfessor returns the professor's slot-carrying
// records the override index is built from: active ad-hoc records plus
// removed regular records (explicit single-occurrence cancellations).
func (r *AttendanceRepository) ListOverrideRecordsForProfessor(ctx context.Context, professorID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE professor_id = $1 AND date >= $2 AND date < $3 AND day_of_week IS NOT NULL
		AND ((origin = 'adhoc' AND state = 'active') OR (origin = 'regular' AND state = 'removed'))`
	return r.selectRecords(ctx, query, professorID, from, to)
}

// ListOverrideRecordsForStudent is the student-scoped variant.
func (r *AttendanceRepository) ListOverrideRecordsForStudent(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT ` + attendanceColumns + ` FROM attendance_records
		WHERE student_id = $1 AND date >= $2 AND date < $3 AND day_of_week IS NOT NULL
		AND ((origin = 'adhoc' AND state = 'active') OR (origin = 'regular' AND state = 'removed'))`
	return r.selectRecords(ctx, query, studentID, from, to)
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	ProfessorID string
	StudentID   string
	BranchID    string
	From        *time.Time
	To          *time.Time
	Origin      *models.AttendanceOrigin
	IncludeGone bool
	Page        int
	PageSize    int
}

// List returns attendance records with optional filtering and pagination.
// Removed records are excluded unless the filter opts in.
func (r *AttendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := "FROM attendance_records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if !filter.IncludeGone {
		conditions = append(conditions, "state = 'active'")
	}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", len(args)+1))
		args = append(args, filter.BranchID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Origin != nil {
		conditions = append(conditions, fmt.Sprintf("origin = $%d", len(args)+1))
		args = append(args, *filter.Origin)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC LIMIT %d OFFSET %d", attendanceColumns, base, size, offset)
	records, err := r.selectRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}

	return records, total, nil
}

func (r *AttendanceRepository) selectRecords(ctx context.Context, query string, args ...interface{}) ([]models.AttendanceRecord, error) {
	var rows []attendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select attendance records: %w", err)
	}
	records := make([]models.AttendanceRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].toModel()
	}
	return records, nil
}
