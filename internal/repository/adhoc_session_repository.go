package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierworks/atelier-api/internal/models"
)

// AdhocSessionRepository persists one-off sessions created by staff.
type AdhocSessionRepository struct {
	db *sqlx.DB
}

// NewAdhocSessionRepository creates a new ad-hoc session repository.
func NewAdhocSessionRepository(db *sqlx.DB) *AdhocSessionRepository {
	return &AdhocSessionRepository{db: db}
}

type adhocSessionRow struct {
	models.AdhocSession
	DayOfWeek   int `db:"day_of_week"`
	StartMinute int `db:"start_minute"`
	EndMinute   int `db:"end_minute"`
}

func (row *adhocSessionRow) toModel() models.AdhocSession {
	session := row.AdhocSession
	session.Slot = models.WeeklySlot{
		DayOfWeek:   row.DayOfWeek,
		StartMinute: row.StartMinute,
		EndMinute:   row.EndMinute,
		Capacity:    row.Capacity,
	}
	return session
}

const adhocSessionColumns = "id, professor_id, branch_id, date, day_of_week, start_minute, end_minute, capacity, created_at"

// FindByID loads one ad-hoc session.
func (r *AdhocSessionRepository) FindByID(ctx context.Context, id string) (*models.AdhocSession, error) {
	const query = `SELECT ` + adhocSessionColumns + ` FROM adhoc_sessions WHERE id = $1`
	var row adhocSessionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	session := row.toModel()
	return &session, nil
}

// ListByProfessorRange returns the professor's ad-hoc sessions inside the
// instant range.
func (r *AdhocSessionRepository) ListByProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.AdhocSession, error) {
	const query = `SELECT ` + adhocSessionColumns + ` FROM adhoc_sessions WHERE professor_id = $1 AND date >= $2 AND date < $3 ORDER BY date ASC`
	var rows []adhocSessionRow
	if err := r.db.SelectContext(ctx, &rows, query, professorID, from, to); err != nil {
		return nil, fmt.Errorf("list adhoc sessions: %w", err)
	}
	sessions := make([]models.AdhocSession, len(rows))
	for i := range rows {
		sessions[i] = rows[i].toModel()
	}
	return sessions, nil
}

// Create inserts a new ad-hoc session.
func (r *AdhocSessionRepository) Create(ctx context.Context, session *models.AdhocSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO adhoc_sessions (id, professor_id, branch_id, date, day_of_week, start_minute, end_minute, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.ProfessorID, session.BranchID, session.Date,
		session.Slot.DayOfWeek, session.Slot.StartMinute, session.Slot.EndMinute,
		session.Capacity, session.CreatedAt); err != nil {
		return fmt.Errorf("create adhoc session: %w", err)
	}
	return nil
}

// CountParticipants returns how many non-removed attendance records are
// registered against the session.
func (r *AdhocSessionRepository) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_records WHERE adhoc_session_id = $1 AND state = 'active'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count adhoc participants: %w", err)
	}
	return count, nil
}
