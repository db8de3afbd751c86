package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierworks/atelier-api/internal/models"
)

// EnrollmentRepository persists monthly enrollments and their chosen slot
// snapshots. A partial unique index on (student_id, professor_id, year,
// month) where state = 'active' enforces the one-active-enrollment rule
// even under racing writers.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_id, professor_id, branch_id, year, month, state, assigned, created_at, updated_at"

// FindByID loads one enrollment with its slots.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveAssigned loads the student's active, assigned enrollment with a
// professor for a month, if any.
func (r *EnrollmentRepository) FindActiveAssigned(ctx context.Context, studentID, professorID, branchID string, year, month int) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE student_id = $1 AND professor_id = $2 AND branch_id = $3 AND year = $4 AND month = $5 AND state = 'active' AND assigned = TRUE`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, professorID, branchID, year, month); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveForStudentMonth returns the student's active enrollments across
// all professors for a month.
func (r *EnrollmentRepository) ListActiveForStudentMonth(ctx context.Context, studentID string, year, month int) ([]models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE student_id = $1 AND year = $2 AND month = $3 AND state = 'active' ORDER BY created_at ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, year, month); err != nil {
		return nil, fmt.Errorf("list enrollments for student: %w", err)
	}
	for i := range enrollments {
		if err := r.loadSlots(ctx, &enrollments[i]); err != nil {
			return nil, err
		}
	}
	return enrollments, nil
}

// ListActiveForProfessorMonth returns the professor's active enrollments for
// a month, used when a schedule change forces re-intersection of chosen
// slots.
func (r *EnrollmentRepository) ListActiveForProfessorMonth(ctx context.Context, professorID string, year, month int) ([]models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE professor_id = $1 AND year = $2 AND month = $3 AND state = 'active' ORDER BY created_at ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, professorID, year, month); err != nil {
		return nil, fmt.Errorf("list enrollments for professor: %w", err)
	}
	for i := range enrollments {
		if err := r.loadSlots(ctx, &enrollments[i]); err != nil {
			return nil, err
		}
	}
	return enrollments, nil
}

// ExistsActive reports whether the student already holds an active
// enrollment with the professor for the month.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, professorID string, year, month int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND professor_id = $2 AND year = $3 AND month = $4 AND state = 'active')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, professorID, year, month); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// BaseOccupancy aggregates, per weekly range, how many assigned active
// enrollments chose it with the professor for the month. This count is
// independent of any specific date; per-day deltas are applied on top by
// the resolver.
func (r *EnrollmentRepository) BaseOccupancy(ctx context.Context, professorID string, year, month int) ([]models.SlotOccupancy, error) {
	const query = `SELECT es.day_of_week, es.start_minute, es.end_minute, COUNT(*) AS count
		FROM enrollments e JOIN enrollment_slots es ON es.enrollment_id = e.id
		WHERE e.professor_id = $1 AND e.year = $2 AND e.month = $3 AND e.state = 'active' AND e.assigned = TRUE
		GROUP BY es.day_of_week, es.start_minute, es.end_minute`
	var rows []models.SlotOccupancy
	if err := r.db.SelectContext(ctx, &rows, query, professorID, year, month); err != nil {
		return nil, fmt.Errorf("aggregate base occupancy: %w", err)
	}
	return rows, nil
}

// Create inserts the enrollment and its slot snapshots in one transaction.
// A unique-index conflict surfaces via IsUniqueViolation.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO enrollments (id, student_id, professor_id, branch_id, year, month, state, assigned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		enrollment.ID, enrollment.StudentID, enrollment.ProfessorID, enrollment.BranchID,
		enrollment.Year, enrollment.Month, enrollment.State, enrollment.Assigned,
		enrollment.CreatedAt, enrollment.UpdatedAt)
	if err != nil {
		return err
	}

	if err = r.insertSlots(ctx, tx, enrollment.ID, enrollment.Slots); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// ReplaceSlots swaps the enrollment's chosen slots and assignment flag, used
// when a schedule change forces re-intersection.
func (r *EnrollmentRepository) ReplaceSlots(ctx context.Context, id string, slots []models.WeeklySlot, assigned bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace slots: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollment_slots WHERE enrollment_id = $1`, id); err != nil {
		return fmt.Errorf("clear enrollment slots: %w", err)
	}
	if err = r.insertSlots(ctx, tx, id, slots); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET assigned = $1, updated_at = $2 WHERE id = $3`, assigned, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update enrollment assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace slots: %w", err)
	}
	return nil
}

// UpdateState transitions the enrollment lifecycle state.
func (r *EnrollmentRepository) UpdateState(ctx context.Context, id string, state models.EnrollmentState) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET state = $1, updated_at = $2 WHERE id = $3`, state, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) insertSlots(ctx context.Context, tx *sqlx.Tx, enrollmentID string, slots []models.WeeklySlot) error {
	for _, slot := range slots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO enrollment_slots (id, enrollment_id, day_of_week, start_minute, end_minute, capacity) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), enrollmentID, slot.DayOfWeek, slot.StartMinute, slot.EndMinute, slot.Capacity); err != nil {
			return fmt.Errorf("insert enrollment slot: %w", err)
		}
	}
	return nil
}

func (r *EnrollmentRepository) loadSlots(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `SELECT day_of_week, start_minute, end_minute, capacity FROM enrollment_slots WHERE enrollment_id = $1 ORDER BY day_of_week ASC, start_minute ASC`
	var slots []models.WeeklySlot
	if err := r.db.SelectContext(ctx, &slots, query, enrollment.ID); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("load enrollment slots: %w", err)
	} else if err == nil {
		enrollment.Slots = slots
	}
	return nil
}
