package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierworks/atelier-api/internal/models"
)

// RescheduleRepository persists single-occurrence moves. A unique index on
// (enrollment_id, year, month) is the backstop for the one-reschedule-per-
// month rule; staff overrides update the existing row in place.
type RescheduleRepository struct {
	db *sqlx.DB
}

// NewRescheduleRepository creates a new reschedule repository.
func NewRescheduleRepository(db *sqlx.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

type rescheduleRow struct {
	models.RescheduleRequest
	FromDayOfWeek   int `db:"from_day_of_week"`
	FromStartMinute int `db:"from_start_minute"`
	FromEndMinute   int `db:"from_end_minute"`
	FromCapacity    int `db:"from_capacity"`
	ToDayOfWeek     int `db:"to_day_of_week"`
	ToStartMinute   int `db:"to_start_minute"`
	ToEndMinute     int `db:"to_end_minute"`
	ToCapacity      int `db:"to_capacity"`
}

func (row *rescheduleRow) toModel() models.RescheduleRequest {
	r := row.RescheduleRequest
	r.SlotFrom = models.WeeklySlot{DayOfWeek: row.FromDayOfWeek, StartMinute: row.FromStartMinute, EndMinute: row.FromEndMinute, Capacity: row.FromCapacity}
	r.SlotTo = models.WeeklySlot{DayOfWeek: row.ToDayOfWeek, StartMinute: row.ToStartMinute, EndMinute: row.ToEndMinute, Capacity: row.ToCapacity}
	return r
}

const rescheduleColumns = `id, enrollment_id, student_id, branch_id, from_professor_id, to_professor_id, year, month,
	from_date, to_date, from_day_of_week, from_start_minute, from_end_minute, from_capacity,
	to_day_of_week, to_start_minute, to_end_minute, to_capacity, reason, requested_by, created_at, updated_at`

// FindByEnrollmentMonth loads the reschedule recorded for an enrollment's
// month, if any.
func (r *RescheduleRepository) FindByEnrollmentMonth(ctx context.Context, enrollmentID string, year, month int) (*models.RescheduleRequest, error) {
	const query = `SELECT ` + rescheduleColumns + ` FROM reschedule_requests WHERE enrollment_id = $1 AND year = $2 AND month = $3`
	var row rescheduleRow
	if err := r.db.GetContext(ctx, &row, query, enrollmentID, year, month); err != nil {
		return nil, err
	}
	result := row.toModel()
	return &result, nil
}

// ListTouchingProfessorRange returns reschedules whose origin or destination
// occurrence involves the professor inside the instant range.
func (r *RescheduleRepository) ListTouchingProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.RescheduleRequest, error) {
	const query = `SELECT ` + rescheduleColumns + ` FROM reschedule_requests
		WHERE (from_professor_id = $1 AND from_date >= $2 AND from_date < $3)
		   OR (to_professor_id = $1 AND to_date >= $2 AND to_date < $3)`
	var rows []rescheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, professorID, from, to); err != nil {
		return nil, fmt.Errorf("list reschedules for professor: %w", err)
	}
	return rowsToModels(rows), nil
}

// ListForStudentRange returns the student's reschedules touching the range.
func (r *RescheduleRepository) ListForStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.RescheduleRequest, error) {
	const query = `SELECT ` + rescheduleColumns + ` FROM reschedule_requests
		WHERE student_id = $1 AND ((from_date >= $2 AND from_date < $3) OR (to_date >= $2 AND to_date < $3))`
	var rows []rescheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("list reschedules for student: %w", err)
	}
	return rowsToModels(rows), nil
}

// ListForStudentDestination returns the student's reschedules whose
// destination lands on the exact instant. Check-in resolution matches on the
// destination occurrence, which may sit in the month after the one the move
// was recorded under, so the lookup keys on to_date rather than the recorded
// (year, month).
func (r *RescheduleRepository) ListForStudentDestination(ctx context.Context, studentID, branchID string, toDate time.Time) ([]models.RescheduleRequest, error) {
	const query = `SELECT ` + rescheduleColumns + ` FROM reschedule_requests
		WHERE student_id = $1 AND branch_id = $2 AND to_date = $3`
	var rows []rescheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, branchID, toDate); err != nil {
		return nil, fmt.Errorf("list reschedules for check-in: %w", err)
	}
	return rowsToModels(rows), nil
}

// Create inserts a reschedule. A student-rule conflict surfaces via
// IsUniqueViolation.
func (r *RescheduleRepository) Create(ctx context.Context, req *models.RescheduleRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO reschedule_requests (id, enrollment_id, student_id, branch_id, from_professor_id, to_professor_id, year, month,
		from_date, to_date, from_day_of_week, from_start_minute, from_end_minute, from_capacity,
		to_day_of_week, to_start_minute, to_end_minute, to_capacity, reason, requested_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.EnrollmentID, req.StudentID, req.BranchID, req.FromProfessorID, req.ToProfessorID, req.Year, req.Month,
		req.FromDate, req.ToDate, req.SlotFrom.DayOfWeek, req.SlotFrom.StartMinute, req.SlotFrom.EndMinute, req.SlotFrom.Capacity,
		req.SlotTo.DayOfWeek, req.SlotTo.StartMinute, req.SlotTo.EndMinute, req.SlotTo.Capacity,
		req.Reason, req.RequestedBy, req.CreatedAt, req.UpdatedAt)
	return err
}

// Update overwrites an existing reschedule in place (staff overrides).
func (r *RescheduleRepository) Update(ctx context.Context, req *models.RescheduleRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reschedule_requests SET from_professor_id = $1, to_professor_id = $2,
		from_date = $3, to_date = $4, from_day_of_week = $5, from_start_minute = $6, from_end_minute = $7, from_capacity = $8,
		to_day_of_week = $9, to_start_minute = $10, to_end_minute = $11, to_capacity = $12,
		reason = $13, requested_by = $14, updated_at = $15 WHERE id = $16`
	if _, err := r.db.ExecContext(ctx, query,
		req.FromProfessorID, req.ToProfessorID, req.FromDate, req.ToDate,
		req.SlotFrom.DayOfWeek, req.SlotFrom.StartMinute, req.SlotFrom.EndMinute, req.SlotFrom.Capacity,
		req.SlotTo.DayOfWeek, req.SlotTo.StartMinute, req.SlotTo.EndMinute, req.SlotTo.Capacity,
		req.Reason, req.RequestedBy, req.UpdatedAt, req.ID); err != nil {
		return fmt.Errorf("update reschedule: %w", err)
	}
	return nil
}

// Delete removes a reschedule by id.
func (r *RescheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reschedule_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reschedule: %w", err)
	}
	return nil
}

func rowsToModels(rows []rescheduleRow) []models.RescheduleRequest {
	result := make([]models.RescheduleRequest, len(rows))
	for i := range rows {
		result[i] = rows[i].toModel()
	}
	return result
}
