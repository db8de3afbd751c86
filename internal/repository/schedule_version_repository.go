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

// ScheduleVersionRepository persists versioned weekly schedules. Versions
// are append-only per professor: opening a new version closes the previous
// one at the new effective date, historical slot definitions are never
// edited.
type ScheduleVersionRepository struct {
	db *sqlx.DB
}

// NewScheduleVersionRepository creates a new schedule version repository.
func NewScheduleVersionRepository(db *sqlx.DB) *ScheduleVersionRepository {
	return &ScheduleVersionRepository{db: db}
}

const scheduleVersionColumns = "id, professor_id, branch_id, effective_from, effective_to, created_at"

// VersionForMonth loads the schedule version valid for the given month: the
// latest version whose effective range overlaps the month. Returns
// sql.ErrNoRows when no version covers it.
func (r *ScheduleVersionRepository) VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error) {
	monthStart, monthEnd := models.MonthRange(year, month)
	const query = `SELECT ` + scheduleVersionColumns + ` FROM schedule_versions
		WHERE professor_id = $1 AND effective_from < $2 AND (effective_to IS NULL OR effective_to > $3)
		ORDER BY effective_from DESC LIMIT 1`
	var version models.WeeklyScheduleVersion
	if err := r.db.GetContext(ctx, &version, query, professorID, monthEnd, monthStart); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// VersionAt loads the version effective at a specific instant.
func (r *ScheduleVersionRepository) VersionAt(ctx context.Context, professorID string, at time.Time) (*models.WeeklyScheduleVersion, error) {
	const query = `SELECT ` + scheduleVersionColumns + ` FROM schedule_versions
		WHERE professor_id = $1 AND effective_from <= $2 AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY effective_from DESC LIMIT 1`
	var version models.WeeklyScheduleVersion
	if err := r.db.GetContext(ctx, &version, query, professorID, at); err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByProfessor returns every version for a professor, newest first.
func (r *ScheduleVersionRepository) ListByProfessor(ctx context.Context, professorID string) ([]models.WeeklyScheduleVersion, error) {
	const query = `SELECT ` + scheduleVersionColumns + ` FROM schedule_versions WHERE professor_id = $1 ORDER BY effective_from DESC`
	var versions []models.WeeklyScheduleVersion
	if err := r.db.SelectContext(ctx, &versions, query, professorID); err != nil {
		return nil, fmt.Errorf("list schedule versions: %w", err)
	}
	for i := range versions {
		if err := r.loadSlots(ctx, &versions[i]); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

// Create closes the professor's open version at the new effective date and
// inserts the new version with its slots, in one transaction.
func (r *ScheduleVersionRepository) Create(ctx context.Context, version *models.WeeklyScheduleVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create schedule version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE schedule_versions SET effective_to = $1 WHERE professor_id = $2 AND effective_to IS NULL AND effective_from < $1`,
		version.EffectiveFrom, version.ProfessorID)
	if err != nil {
		return fmt.Errorf("close open schedule version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schedule_versions (id, professor_id, branch_id, effective_from, effective_to, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		version.ID, version.ProfessorID, version.BranchID, version.EffectiveFrom, version.EffectiveTo, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule version: %w", err)
	}

	for _, slot := range version.Slots {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schedule_slots (id, schedule_version_id, day_of_week, start_minute, end_minute, capacity) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), version.ID, slot.DayOfWeek, slot.StartMinute, slot.EndMinute, slot.Capacity)
		if err != nil {
			return fmt.Errorf("insert schedule slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create schedule version: %w", err)
	}
	return nil
}

func (r *ScheduleVersionRepository) loadSlots(ctx context.Context, version *models.WeeklyScheduleVersion) error {
	const query = `SELECT day_of_week, start_minute, end_minute, capacity FROM schedule_slots WHERE schedule_version_id = $1 ORDER BY day_of_week ASC, start_minute ASC`
	var slots []models.WeeklySlot
	if err := r.db.SelectContext(ctx, &slots, query, version.ID); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("load schedule slots: %w", err)
	} else if err == nil {
		version.Slots = slots
	}
	return nil
}
