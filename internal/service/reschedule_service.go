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

// maxRescheduleSpan bounds how far an occurrence may be moved from its
// original date.
const maxRescheduleSpan = 7 * 24 * time.Hour

type rescheduleRepository interface {
	FindByEnrollmentMonth(ctx context.Context, enrollmentID string, year, month int) (*models.RescheduleRequest, error)
	Create(ctx context.Context, req *models.RescheduleRequest) error
	Update(ctx context.Context, req *models.RescheduleRequest) error
	Delete(ctx context.Context, id string) error
}

type rescheduleEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// RescheduleService moves single occurrences. Students get one reschedule per
// enrollment and month; staff may overwrite an existing one. The destination
// slot must exist in the destination professor's schedule and have room.
type RescheduleService struct {
	repo        rescheduleRepository
	enrollments rescheduleEnrollmentRepository
	admission   *AdmissionService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	isDuplicate uniqueViolationChecker
}

// NewRescheduleService constructs a RescheduleService.
func NewRescheduleService(repo rescheduleRepository, enrollments rescheduleEnrollmentRepository, admission *AdmissionService, cache *CacheService, validate *validator.Validate, logger *zap.Logger, isDuplicate uniqueViolationChecker) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isDuplicate == nil {
		isDuplicate = func(error) bool { return false }
	}
	return &RescheduleService{
		repo:        repo,
		enrollments: enrollments,
		admission:   admission,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		isDuplicate: isDuplicate,
	}
}

// Create validates and persists a reschedule on behalf of the given actor.
// When a staff actor targets an enrollment-month that already has one, the
// existing request is overwritten in place.
func (s *RescheduleService) Create(ctx context.Context, req models.CreateRescheduleRequest, actor models.RescheduleActor) (*models.RescheduleRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.State != models.EnrollmentStateActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	monthStart, monthEnd := models.MonthRange(enrollment.Year, time.Month(enrollment.Month))
	if !models.InMonth(req.FromDate, monthStart, monthEnd) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from_date is outside the enrollment's month")
	}
	slotFrom := req.SlotFrom.Slot()
	if !enrollment.HasSlot(slotFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot_from is not one of the enrollment's chosen slots")
	}

	span := req.ToDate.Sub(req.FromDate)
	if span < 0 {
		span = -span
	}
	if span > maxRescheduleSpan {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_date must fall within 7 days of from_date")
	}

	slotTo, err := s.admission.ValidateDestination(ctx, req.ToProfessorID, req.ToDate.Year(), req.ToDate.Month(), req.SlotTo.Slot())
	if err != nil {
		return nil, err
	}
	if err := s.admission.Reserve(ctx, req.ToProfessorID, req.ToDate, slotTo, req.ToDate.Year(), req.ToDate.Month()); err != nil {
		return nil, err
	}

	reschedule := &models.RescheduleRequest{
		EnrollmentID:    enrollment.ID,
		StudentID:       enrollment.StudentID,
		BranchID:        enrollment.BranchID,
		FromProfessorID: enrollment.ProfessorID,
		ToProfessorID:   req.ToProfessorID,
		Year:            enrollment.Year,
		Month:           enrollment.Month,
		FromDate:        req.FromDate.UTC(),
		ToDate:          req.ToDate.UTC(),
		SlotFrom:        slotFrom,
		SlotTo:          slotTo,
		Reason:          req.Reason,
		RequestedBy:     actor,
	}

	existing, err := s.repo.FindByEnrollmentMonth(ctx, enrollment.ID, enrollment.Year, enrollment.Month)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up existing reschedule")
	}
	if existing != nil {
		if actor != models.RescheduleByStaff {
			return nil, appErrors.Clone(appErrors.ErrDuplicateReschedule, "")
		}
		reschedule.ID = existing.ID
		reschedule.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, reschedule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to overwrite reschedule")
		}
	} else {
		if err := s.repo.Create(ctx, reschedule); err != nil {
			if s.isDuplicate(err) {
				return nil, appErrors.Clone(appErrors.ErrDuplicateReschedule, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reschedule")
		}
	}

	s.invalidate(ctx)
	s.logger.Info("reschedule recorded",
		zap.String("reschedule_id", reschedule.ID),
		zap.String("enrollment_id", reschedule.EnrollmentID),
		zap.String("requested_by", string(actor)))
	return reschedule, nil
}

// Cancel removes a reschedule (staff only at the handler).
func (s *RescheduleService) Cancel(ctx context.Context, enrollmentID string, year, month int) error {
	existing, err := s.repo.FindByEnrollmentMonth(ctx, enrollmentID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reschedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reschedule")
	}
	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reschedule")
	}
	s.invalidate(ctx)
	return nil
}

func (s *RescheduleService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
