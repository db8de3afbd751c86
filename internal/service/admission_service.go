package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type admissionScheduleRepository interface {
	VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error)
}

type admissionEnrollmentRepository interface {
	BaseOccupancy(ctx context.Context, professorID string, year, month int) ([]models.SlotOccupancy, error)
}

type admissionRescheduleRepository interface {
	ListTouchingProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.RescheduleRequest, error)
}

type admissionAttendanceRepository interface {
	ListOverrideRecordsForProfessor(ctx context.Context, professorID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

// AdmissionService gates capacity for enrollment, reschedule and walk-in
// flows. Reserve evaluates the effective occupancy against current state and
// returns a decision only; the caller performs the actual write, and the
// store's unique upsert keys serialise racing writers.
type AdmissionService struct {
	schedules   admissionScheduleRepository
	enrollments admissionEnrollmentRepository
	reschedules admissionRescheduleRepository
	attendance  admissionAttendanceRepository
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(
	schedules admissionScheduleRepository,
	enrollments admissionEnrollmentRepository,
	reschedules admissionRescheduleRepository,
	attendance admissionAttendanceRepository,
	metrics *MetricsService,
	logger *zap.Logger,
) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		schedules:   schedules,
		enrollments: enrollments,
		reschedules: reschedules,
		attendance:  attendance,
		metrics:     metrics,
		logger:      logger,
	}
}

// Reserve checks whether the occurrence at (professor, date, slot) still has
// room. slot.Capacity is the limit; for ad-hoc walk-ins the caller passes the
// session's slot snapshot carrying the session capacity.
func (s *AdmissionService) Reserve(ctx context.Context, professorID string, date time.Time, slot models.WeeklySlot, year int, month time.Month) error {
	taken, err := s.EffectiveOccupancyAt(ctx, professorID, date, slot, year, month)
	if err != nil {
		return err
	}
	if taken >= slot.Capacity {
		s.metrics.RecordReservation(false)
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}
	s.metrics.RecordReservation(true)
	return nil
}

// EffectiveOccupancyAt recomputes the occurrence's occupancy from current
// state: base enrollment counts plus the day's override deltas.
func (s *AdmissionService) EffectiveOccupancyAt(ctx context.Context, professorID string, date time.Time, slot models.WeeklySlot, year int, month time.Month) (int, error) {
	monthStart, monthEnd := models.MonthRange(year, month)

	occupancy, err := s.enrollments.BaseOccupancy(ctx, professorID, year, int(month))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate base occupancy")
	}
	base := 0
	for _, row := range occupancy {
		if row.DayOfWeek == slot.DayOfWeek && row.StartMinute == slot.StartMinute && row.EndMinute == slot.EndMinute {
			base = row.Count
			break
		}
	}

	reschedules, err := s.reschedules.ListTouchingProfessorRange(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedules")
	}
	records, err := s.attendance.ListOverrideRecordsForProfessor(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance overrides")
	}

	idx := BuildOverrideIndex(reschedules, records, monthStart, monthEnd)
	return EffectiveOccupancy(base, idx, date, models.SlotKey(professorID, slot)), nil
}

// ValidateDestination checks that the weekly range exists in the professor's
// schedule version valid for the month and returns the schedule's slot with
// its capacity. A month without a covering version is a hard rejection here,
// unlike listing.
func (s *AdmissionService) ValidateDestination(ctx context.Context, professorID string, year int, month time.Month, slot models.WeeklySlot) (models.WeeklySlot, error) {
	version, err := s.schedules.VersionForMonth(ctx, professorID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WeeklySlot{}, appErrors.Clone(appErrors.ErrScheduleNotFound, "")
		}
		return models.WeeklySlot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}
	found, ok := version.FindSlot(slot)
	if !ok {
		return models.WeeklySlot{}, appErrors.Clone(appErrors.ErrSlotNotInSchedule, "")
	}
	return found, nil
}
