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

type scheduleVersionRepository interface {
	VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error)
	ListByProfessor(ctx context.Context, professorID string) ([]models.WeeklyScheduleVersion, error)
	Create(ctx context.Context, version *models.WeeklyScheduleVersion) error
}

type scheduleEnrollmentRepository interface {
	ListActiveForProfessorMonth(ctx context.Context, professorID string, year, month int) ([]models.Enrollment, error)
	ReplaceSlots(ctx context.Context, id string, slots []models.WeeklySlot, assigned bool) error
}

// ScheduleService manages versioned weekly schedules. Changing a schedule
// never edits history: the open version is closed at the new effective date
// and a new one opens. Enrollments already placed on the affected month are
// re-intersected with the new slot set and unassigned when nothing survives.
type ScheduleService struct {
	versions    scheduleVersionRepository
	enrollments scheduleEnrollmentRepository
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(versions scheduleVersionRepository, enrollments scheduleEnrollmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{versions: versions, enrollments: enrollments, cache: cache, validator: validate, logger: logger}
}

// CreateVersion opens a new schedule version and re-intersects the affected
// month's enrollments against the new slot set.
func (s *ScheduleService) CreateVersion(ctx context.Context, req models.CreateScheduleRequest) (*models.WeeklyScheduleVersion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	slots := make([]models.WeeklySlot, len(req.Slots))
	for i, input := range req.Slots {
		slots[i] = input.Slot()
		if !slots[i].Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot time range is malformed")
		}
		for j := 0; j < i; j++ {
			if slots[i].Overlaps(slots[j]) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "slots on the same day must not overlap")
			}
		}
	}

	version := &models.WeeklyScheduleVersion{
		ProfessorID:   req.ProfessorID,
		BranchID:      req.BranchID,
		EffectiveFrom: req.EffectiveFrom.UTC(),
		Slots:         slots,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule version")
	}

	if err := s.reintersectEnrollments(ctx, version); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("schedule version created",
		zap.String("professor_id", version.ProfessorID),
		zap.String("version_id", version.ID),
		zap.Time("effective_from", version.EffectiveFrom))
	return version, nil
}

// reintersectEnrollments replaces each affected enrollment's chosen slots
// with the intersection against the new version, unassigning when the
// intersection becomes empty.
func (s *ScheduleService) reintersectEnrollments(ctx context.Context, version *models.WeeklyScheduleVersion) error {
	year, month := version.EffectiveFrom.Year(), version.EffectiveFrom.Month()
	enrollments, err := s.enrollments.ListActiveForProfessorMonth(ctx, version.ProfessorID, year, int(month))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affected enrollments")
	}

	for i := range enrollments {
		e := &enrollments[i]
		var kept []models.WeeklySlot
		for _, chosen := range e.Slots {
			if surviving, ok := version.FindSlot(chosen); ok {
				kept = append(kept, surviving)
			}
		}
		if len(kept) == len(e.Slots) {
			continue
		}
		if err := s.enrollments.ReplaceSlots(ctx, e.ID, kept, len(kept) > 0); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-intersect enrollment slots")
		}
		if len(kept) == 0 {
			s.logger.Info("enrollment unassigned by schedule change",
				zap.String("enrollment_id", e.ID),
				zap.String("professor_id", version.ProfessorID))
		}
	}
	return nil
}

// ListVersions returns every version for a professor, newest first.
func (s *ScheduleService) ListVersions(ctx context.Context, professorID string) ([]models.WeeklyScheduleVersion, error) {
	versions, err := s.versions.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule versions")
	}
	return versions, nil
}

// VersionForMonth resolves the version effective for a month.
func (s *ScheduleService) VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error) {
	version, err := s.versions.VersionForMonth(ctx, professorID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrScheduleNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}
	return version, nil
}

func (s *ScheduleService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
