package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type adhocSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.AdhocSession, error)
	ListByProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.AdhocSession, error)
	Create(ctx context.Context, session *models.AdhocSession) error
}

type adhocAttendanceRepository interface {
	UpsertAdhoc(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

// AdhocService manages one-off sessions and their walk-in registrations.
// Registration goes through the admission guard, where already-registered
// participants count via the override index's ad-hoc deltas.
type AdhocService struct {
	sessions   adhocSessionRepository
	attendance adhocAttendanceRepository
	admission  *AdmissionService
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAdhocService constructs an AdhocService.
func NewAdhocService(sessions adhocSessionRepository, attendance adhocAttendanceRepository, admission *AdmissionService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AdhocService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdhocService{
		sessions:   sessions,
		attendance: attendance,
		admission:  admission,
		cache:      cache,
		validator:  validate,
		logger:     logger,
	}
}

// CreateSession adds a one-off class with its own capacity. The session's
// date must agree with the slot snapshot's weekday.
func (s *AdhocService) CreateSession(ctx context.Context, req models.CreateAdhocSessionRequest) (*models.AdhocSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adhoc session payload")
	}
	slot := req.Slot.Slot()
	if !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot time range is malformed")
	}
	date := req.Date.UTC()
	if int(date.Weekday()) != slot.DayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday")
	}

	session := &models.AdhocSession{
		ProfessorID: req.ProfessorID,
		BranchID:    req.BranchID,
		Date:        date,
		Slot:        slot,
		Capacity:    slot.Capacity,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create adhoc session")
	}

	s.invalidate(ctx)
	s.logger.Info("adhoc session created",
		zap.String("session_id", session.ID),
		zap.String("professor_id", session.ProfessorID),
		zap.Time("date", session.Date))
	return session, nil
}

// RegisterParticipant registers a student for the session. The record is
// created absent; check-in or staff marking flips it to present.
func (s *AdhocService) RegisterParticipant(ctx context.Context, sessionID, studentID, registeredBy string) (*models.AttendanceRecord, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "adhoc session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load adhoc session")
	}

	guardSlot := session.Slot
	guardSlot.Capacity = session.Capacity
	if err := s.admission.Reserve(ctx, session.ProfessorID, session.Date, guardSlot, session.Date.Year(), session.Date.Month()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	slot := guardSlot
	rec, err := s.attendance.UpsertAdhoc(ctx, &models.AttendanceRecord{
		AdhocSessionID: &session.ID,
		StudentID:      studentID,
		ProfessorID:    session.ProfessorID,
		BranchID:       session.BranchID,
		Date:           session.Date,
		Status:         models.AttendanceStatusAbsent,
		Origin:         models.AttendanceOriginAdhoc,
		Slot:           &slot,
		MarkedBy:       &registeredBy,
		MarkedAt:       &now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register participant")
	}

	s.invalidate(ctx)
	return rec, nil
}

// ListSessions returns the professor's sessions for a month.
func (s *AdhocService) ListSessions(ctx context.Context, professorID string, year int, month time.Month) ([]models.AdhocSession, error) {
	monthStart, monthEnd := models.MonthRange(year, month)
	sessions, err := s.sessions.ListByProfessorRange(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adhoc sessions")
	}
	return sessions, nil
}

func (s *AdhocService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
