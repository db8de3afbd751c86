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

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, professorID string, year, month int) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ReplaceSlots(ctx context.Context, id string, slots []models.WeeklySlot, assigned bool) error
	UpdateState(ctx context.Context, id string, state models.EnrollmentState) error
}

type uniqueViolationChecker func(error) bool

// EnrollmentService manages monthly subscriptions. Every chosen slot must
// exist in the schedule version valid for the month and pass the admission
// guard; the store's partial unique index backstops the
// one-active-enrollment rule under races.
type EnrollmentService struct {
	repo        enrollmentRepository
	admission   *AdmissionService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	isDuplicate uniqueViolationChecker
	policy      ExpansionPolicy
}

// NewEnrollmentService constructs an EnrollmentService. isDuplicate
// recognises the store's unique-violation error.
func NewEnrollmentService(repo enrollmentRepository, admission *AdmissionService, cache *CacheService, validate *validator.Validate, logger *zap.Logger, isDuplicate uniqueViolationChecker) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isDuplicate == nil {
		isDuplicate = func(error) bool { return false }
	}
	return &EnrollmentService{
		repo:        repo,
		admission:   admission,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		isDuplicate: isDuplicate,
		policy:      DefaultExpansionPolicy,
	}
}

// Create validates the chosen slots against the month's schedule, reserves
// capacity and persists the enrollment.
func (s *EnrollmentService) Create(ctx context.Context, req models.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.ProfessorID, req.Year, req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds an active enrollment with this professor for the month")
	}

	slots, err := s.admitSlots(ctx, req.ProfessorID, req.Year, time.Month(req.Month), req.Slots)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:   req.StudentID,
		ProfessorID: req.ProfessorID,
		BranchID:    req.BranchID,
		Year:        req.Year,
		Month:       req.Month,
		State:       models.EnrollmentStateActive,
		Assigned:    true,
		Slots:       slots,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if s.isDuplicate(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds an active enrollment with this professor for the month")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.invalidate(ctx)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("professor_id", enrollment.ProfessorID))
	return enrollment, nil
}

// ChangeSlots replaces an enrollment's chosen slots after re-validating them
// against the schedule and the admission guard.
func (s *EnrollmentService) ChangeSlots(ctx context.Context, id string, req models.ChangeEnrollmentSlotsRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slots payload")
	}

	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.State != models.EnrollmentStateActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	slots, err := s.admitSlots(ctx, enrollment.ProfessorID, enrollment.Year, time.Month(enrollment.Month), req.Slots)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceSlots(ctx, id, slots, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace enrollment slots")
	}
	enrollment.Slots = slots
	enrollment.Assigned = true

	s.invalidate(ctx)
	return enrollment, nil
}

// Cancel transitions the enrollment to cancelled.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateState(ctx, id, models.EnrollmentStateCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	s.invalidate(ctx)
	return nil
}

// Get loads one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// admitSlots validates that each requested slot exists in the month's
// schedule and has capacity left on every occurrence the slot expands to,
// returning the schedule's slot snapshots. Per-day deltas (moved-in seats,
// walk-ins) can fill a single date while the rest of the month has room, so
// one occurrence is not representative of the whole slot.
func (s *EnrollmentService) admitSlots(ctx context.Context, professorID string, year int, month time.Month, inputs []models.SlotInput) ([]models.WeeklySlot, error) {
	slots := make([]models.WeeklySlot, 0, len(inputs))
	for _, input := range inputs {
		requested := input.Slot()
		scheduled, err := s.admission.ValidateDestination(ctx, professorID, year, month, requested)
		if err != nil {
			return nil, err
		}
		for _, window := range ExpandSlot(scheduled, year, month, s.policy) {
			if err := s.admission.Reserve(ctx, professorID, window.Start, scheduled, year, month); err != nil {
				return nil, err
			}
		}
		slots = append(slots, scheduled)
	}
	return slots, nil
}

func (s *EnrollmentService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
