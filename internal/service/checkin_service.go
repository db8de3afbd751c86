package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/token"
)

type checkinAttendanceRepository interface {
	FindActiveByOccurrence(ctx context.Context, studentID, professorID, branchID string, date time.Time) (*models.AttendanceRecord, error)
	UpsertRegular(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
	MarkPresent(ctx context.Context, id, markedBy string, markedAt time.Time) error
}

type checkinEnrollmentRepository interface {
	FindActiveAssigned(ctx context.Context, studentID, professorID, branchID string, year, month int) (*models.Enrollment, error)
}

type checkinRescheduleRepository interface {
	ListForStudentDestination(ctx context.Context, studentID, branchID string, toDate time.Time) ([]models.RescheduleRequest, error)
}

type checkinScheduleRepository interface {
	VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error)
}

// CheckInMatch names which authorization rule admitted a check-in.
type CheckInMatch string

const (
	MatchPreScheduled CheckInMatch = "pre-scheduled"
	MatchRegular      CheckInMatch = "regular"
	MatchReschedule   CheckInMatch = "reschedule"
)

// CheckInResult is the outcome of a successful check-in.
type CheckInResult struct {
	Match  CheckInMatch             `json:"match"`
	Record *models.AttendanceRecord `json:"record"`
}

// CheckInService decodes signed check-in tokens, enforces the admission
// window and resolves the student's claim against the month's schedule state.
// The resolution cascade short-circuits on the first match and fails closed:
// no rule matching means rejection, never a silent best-effort record.
type CheckInService struct {
	attendance  checkinAttendanceRepository
	enrollments checkinEnrollmentRepository
	reschedules checkinRescheduleRepository
	schedules   checkinScheduleRepository
	codec       *token.Codec
	windowLower time.Duration
	windowUpper time.Duration
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewCheckInService constructs a CheckInService. windowLower and windowUpper
// are offsets from the occurrence's stored start instant bounding when a
// check-in is accepted.
func NewCheckInService(
	attendance checkinAttendanceRepository,
	enrollments checkinEnrollmentRepository,
	reschedules checkinRescheduleRepository,
	schedules checkinScheduleRepository,
	codec *token.Codec,
	windowLower, windowUpper time.Duration,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *CheckInService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckInService{
		attendance:  attendance,
		enrollments: enrollments,
		reschedules: reschedules,
		schedules:   schedules,
		codec:       codec,
		windowLower: windowLower,
		windowUpper: windowUpper,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// CheckIn processes one token-based check-in for the authenticated student.
// Re-submitting the same token after success is a no-op thanks to the
// upsert keys; the same result is returned again.
func (s *CheckInService) CheckIn(ctx context.Context, rawToken, studentID, markedBy string) (*CheckInResult, error) {
	env, err := s.codec.Decode(rawToken)
	if err != nil {
		s.metrics.RecordCheckIn("invalid_token")
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}
	start, err := env.StartInstant()
	if err != nil {
		s.metrics.RecordCheckIn("invalid_token")
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}

	now := s.now().UTC()
	if now.Before(start.Add(s.windowLower)) || !now.Before(start.Add(s.windowUpper)) {
		s.metrics.RecordCheckIn("out_of_window")
		return nil, appErrors.Clone(appErrors.ErrOutOfWindow, "")
	}

	professorID, slot, err := models.ParseSlotKey(env.SlotKey)
	if err != nil {
		s.metrics.RecordCheckIn("invalid_token")
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}

	year, month := start.Year(), start.Month()

	// Rule 1: a pre-scheduled record already exists for this occurrence.
	existing, err := s.attendance.FindActiveByOccurrence(ctx, studentID, professorID, env.Branch, start)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up attendance record")
	}
	if existing != nil {
		if err := s.attendance.MarkPresent(ctx, existing.ID, markedBy, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
		}
		existing.Status = models.AttendanceStatusPresent
		existing.MarkedBy = &markedBy
		existing.MarkedAt = &now
		s.invalidate(ctx)
		s.metrics.RecordCheckIn("pre_scheduled")
		return &CheckInResult{Match: MatchPreScheduled, Record: existing}, nil
	}

	// Rule 2: the claimed slot must exist in the schedule valid for that
	// month, otherwise the occurrence could never have been real.
	version, err := s.schedules.VersionForMonth(ctx, professorID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordCheckIn("slot_not_in_schedule")
			return nil, appErrors.Clone(appErrors.ErrSlotNotInSchedule, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}
	scheduleSlot, ok := version.FindSlot(slot)
	if !ok {
		s.metrics.RecordCheckIn("slot_not_in_schedule")
		return nil, appErrors.Clone(appErrors.ErrSlotNotInSchedule, "")
	}

	// Rule 3: an active assigned enrollment whose chosen slots contain the
	// claimed slot.
	enrollment, err := s.enrollments.FindActiveAssigned(ctx, studentID, professorID, env.Branch, year, int(month))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment != nil && enrollment.HasSlot(slot) {
		rec, err := s.attendance.UpsertRegular(ctx, &models.AttendanceRecord{
			EnrollmentID: &enrollment.ID,
			StudentID:    studentID,
			ProfessorID:  professorID,
			BranchID:     env.Branch,
			Date:         start,
			Status:       models.AttendanceStatusPresent,
			Origin:       models.AttendanceOriginRegular,
			Slot:         &scheduleSlot,
			MarkedBy:     &markedBy,
			MarkedAt:     &now,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		s.invalidate(ctx)
		s.metrics.RecordCheckIn("regular")
		return &CheckInResult{Match: MatchRegular, Record: rec}, nil
	}

	// Rule 4: a reschedule whose destination is exactly this occurrence. The
	// move may be recorded under the previous month when it crosses a month
	// boundary, so the lookup keys on the destination date itself.
	reschedules, err := s.reschedules.ListForStudentDestination(ctx, studentID, env.Branch, start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedules")
	}
	for i := range reschedules {
		r := &reschedules[i]
		if r.ToProfessorID != professorID || !r.ToDate.Equal(start) || !r.SlotTo.SameRange(slot) {
			continue
		}
		slotSnapshot := r.SlotTo
		rec, err := s.attendance.UpsertRegular(ctx, &models.AttendanceRecord{
			EnrollmentID: &r.EnrollmentID,
			StudentID:    studentID,
			ProfessorID:  professorID,
			BranchID:     env.Branch,
			Date:         start,
			Status:       models.AttendanceStatusPresent,
			Origin:       models.AttendanceOriginRegular,
			Slot:         &slotSnapshot,
			RescheduleID: &r.ID,
			MarkedBy:     &markedBy,
			MarkedAt:     &now,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		s.invalidate(ctx)
		s.metrics.RecordCheckIn("reschedule")
		return &CheckInResult{Match: MatchReschedule, Record: rec}, nil
	}

	s.metrics.RecordCheckIn("not_enrolled")
	return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "")
}

// IssueToken encodes a signed check-in token for a concrete occurrence.
// Tokens carry no authorization of their own: the check-in cascade still
// verifies the claim, so issuance only requires a well-formed slot key. That
// keeps ad-hoc occurrences, whose slots never appear in a schedule version,
// issuable.
func (s *CheckInService) IssueToken(ctx context.Context, branchID string, start time.Time, slotKey, enrollmentID string) (string, error) {
	if _, _, err := models.ParseSlotKey(slotKey); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot key")
	}

	encoded, err := s.codec.Encode(token.Envelope{
		Branch:       branchID,
		Start:        start.UTC().Format(time.RFC3339),
		SlotKey:      slotKey,
		EnrollmentID: enrollmentID,
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode check-in token")
	}
	return encoded, nil
}

func (s *CheckInService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "occurrences:*"); err != nil {
		s.logger.Warn("failed to invalidate occurrence cache", zap.Error(err))
	}
}
