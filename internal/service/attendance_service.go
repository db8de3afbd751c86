package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/repository"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type attendanceRepo interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	UpsertRegular(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, markedBy string, markedAt time.Time) error
	SoftRemove(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type attendanceEnrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// AttendanceService is the staff-facing administration surface over
// attendance records: marking, single-occurrence cancellation, listing.
type AttendanceService struct {
	repo        attendanceRepo
	enrollments attendanceEnrollmentRepo
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepo, enrollments attendanceEnrollmentRepo, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, cache: cache, validator: validate, logger: logger}
}

// MarkOccurrence upserts the regular record for one concrete occurrence of
// an enrollment. Records are created lazily: before the first mark or
// check-in no row exists, so staff marking must build it here with the
// enrollment's slot snapshot. Soft-removing the resulting record cancels
// that single class date.
func (s *AttendanceService) MarkOccurrence(ctx context.Context, req models.MarkOccurrenceRequest, markedBy string) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid occurrence payload")
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

	requested := req.Slot.Slot()
	var snapshot *models.WeeklySlot
	for i := range enrollment.Slots {
		if enrollment.Slots[i].SameRange(requested) {
			snapshot = &enrollment.Slots[i]
			break
		}
	}
	if snapshot == nil {
		return nil, appErrors.Clone(appErrors.ErrSlotNotInSchedule, "slot is not one of the enrollment's chosen slots")
	}
	date := req.Date.UTC()
	if int(date.Weekday()) != snapshot.DayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date does not fall on the slot's weekday")
	}
	// Canonicalise to the occurrence's start instant so the record lines up
	// with the (enrollment_id, date) upsert key check-in uses.
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	start := day.Add(time.Duration(snapshot.StartMinute) * time.Minute)

	now := time.Now().UTC()
	slotCopy := *snapshot
	rec, err := s.repo.UpsertRegular(ctx, &models.AttendanceRecord{
		EnrollmentID: &enrollment.ID,
		StudentID:    enrollment.StudentID,
		ProfessorID:  enrollment.ProfessorID,
		BranchID:     enrollment.BranchID,
		Date:         start,
		Status:       req.Status,
		Origin:       models.AttendanceOriginRegular,
		Slot:         &slotCopy,
		MarkedBy:     &markedBy,
		MarkedAt:     &now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.invalidate(ctx)
	return rec, nil
}

// Mark sets the status of an existing record.
func (s *AttendanceService) Mark(ctx context.Context, id string, req models.MarkAttendanceRequest, markedBy string) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Removed() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "record has been removed")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, req.Status, markedBy, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance status")
	}
	rec.Status = req.Status
	rec.MarkedBy = &markedBy
	rec.MarkedAt = &now

	s.invalidate(ctx)
	return rec, nil
}

// Remove soft-deletes a record. A removed regular record that carries a slot
// snapshot acts as an explicit cancellation of that single occurrence.
func (s *AttendanceService) Remove(ctx context.Context, id string) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Removed() {
		return nil
	}
	if err := s.repo.SoftRemove(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove attendance record")
	}
	s.invalidate(ctx)
	return nil
}

// List returns records matching the filter with a total count.
func (s *AttendanceService) List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	return records, total, nil
}

func (s *AttendanceService) get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	return rec, nil
}

func (s *AttendanceService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
