package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

type occurrenceScheduleRepository interface {
	VersionForMonth(ctx context.Context, professorID string, year int, month time.Month) (*models.WeeklyScheduleVersion, error)
}

type occurrenceEnrollmentRepository interface {
	BaseOccupancy(ctx context.Context, professorID string, year, month int) ([]models.SlotOccupancy, error)
	ListActiveForStudentMonth(ctx context.Context, studentID string, year, month int) ([]models.Enrollment, error)
}

type occurrenceRescheduleRepository interface {
	ListTouchingProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.RescheduleRequest, error)
	ListForStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.RescheduleRequest, error)
}

type occurrenceAdhocRepository interface {
	ListByProfessorRange(ctx context.Context, professorID string, from, to time.Time) ([]models.AdhocSession, error)
}

type occurrenceAttendanceRepository interface {
	ListOverrideRecordsForProfessor(ctx context.Context, professorID string, from, to time.Time) ([]models.AttendanceRecord, error)
	ListOverrideRecordsForStudent(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

// OccurrenceService resolves the authoritative occurrence list for a scope
// and month: weekly slots expanded to concrete dates, merged with ad-hoc
// sessions and reschedule destinations, annotated with effective occupancy.
type OccurrenceService struct {
	schedules   occurrenceScheduleRepository
	enrollments occurrenceEnrollmentRepository
	reschedules occurrenceRescheduleRepository
	adhoc       occurrenceAdhocRepository
	attendance  occurrenceAttendanceRepository
	cache       *CacheService
	metrics     *MetricsService
	policy      ExpansionPolicy
	logger      *zap.Logger
}

// NewOccurrenceService constructs an OccurrenceService.
func NewOccurrenceService(
	schedules occurrenceScheduleRepository,
	enrollments occurrenceEnrollmentRepository,
	reschedules occurrenceRescheduleRepository,
	adhoc occurrenceAdhocRepository,
	attendance occurrenceAttendanceRepository,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *OccurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceService{
		schedules:   schedules,
		enrollments: enrollments,
		reschedules: reschedules,
		adhoc:       adhoc,
		attendance:  attendance,
		cache:       cache,
		metrics:     metrics,
		policy:      DefaultExpansionPolicy,
		logger:      logger,
	}
}

// professorContext bundles the professor-wide state every occupancy
// computation needs for one month.
type professorContext struct {
	baseBySlot map[string]int
	idx        OverrideIndex
}

func (s *OccurrenceService) loadProfessorContext(ctx context.Context, professorID string, year int, month time.Month, monthStart, monthEnd time.Time) (*professorContext, []models.RescheduleRequest, error) {
	occupancy, err := s.enrollments.BaseOccupancy(ctx, professorID, year, int(month))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate base occupancy")
	}
	baseBySlot := make(map[string]int, len(occupancy))
	for _, row := range occupancy {
		key := models.SlotKey(professorID, models.WeeklySlot{DayOfWeek: row.DayOfWeek, StartMinute: row.StartMinute, EndMinute: row.EndMinute})
		baseBySlot[key] = row.Count
	}

	reschedules, err := s.reschedules.ListTouchingProfessorRange(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedules")
	}
	records, err := s.attendance.ListOverrideRecordsForProfessor(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance overrides")
	}

	return &professorContext{
		baseBySlot: baseBySlot,
		idx:        BuildOverrideIndex(reschedules, records, monthStart, monthEnd),
	}, reschedules, nil
}

// ListForProfessor returns every occurrence a professor teaches in the month.
// A missing schedule version yields an empty list, not an error; moved-out
// students lower a day's occupancy but the class itself stays listed.
func (s *OccurrenceService) ListForProfessor(ctx context.Context, professorID string, year int, month time.Month) ([]models.Occurrence, error) {
	cacheKey := fmt.Sprintf("occurrences:professor:%s:%04d-%02d", professorID, year, int(month))
	var cached []models.Occurrence
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	started := time.Now()
	monthStart, monthEnd := models.MonthRange(year, month)

	version, err := s.schedules.VersionForMonth(ctx, professorID, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Occurrence{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}

	profCtx, reschedules, err := s.loadProfessorContext(ctx, professorID, year, month, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	sessions, err := s.adhoc.ListByProfessorRange(ctx, professorID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load adhoc sessions")
	}

	var candidates []models.Occurrence
	for _, slot := range version.Slots {
		key := models.SlotKey(professorID, slot)
		for _, window := range ExpandSlot(slot, year, month, s.policy) {
			candidates = append(candidates, models.Occurrence{
				Start:       window.Start,
				End:         window.End,
				ProfessorID: professorID,
				BranchID:    version.BranchID,
				SlotKey:     key,
				DayOfWeek:   slot.DayOfWeek,
				Capacity:    slot.Capacity,
				Origin:      models.OriginBase,
			})
		}
	}
	for _, session := range sessions {
		candidates = append(candidates, adhocOccurrence(&session))
	}
	for i := range reschedules {
		r := &reschedules[i]
		if r.ToProfessorID != professorID || !models.InMonth(r.ToDate, monthStart, monthEnd) {
			continue
		}
		candidates = append(candidates, rescheduleInOccurrence(r))
	}

	resolved := ResolveOccurrences(candidates, profCtx.idx, false)
	for i := range resolved {
		AnnotateOccupancy(&resolved[i], profCtx.baseBySlot[resolved[i].SlotKey], profCtx.idx)
	}

	s.metrics.ObserveResolution("professor", time.Since(started))
	if err := s.cache.Set(ctx, cacheKey, resolved, 0); err != nil {
		s.logger.Warn("failed to cache professor occurrences", zap.Error(err))
	}
	return resolved, nil
}

// ListForStudent returns the student's own occurrences for the month: their
// enrollments' slots minus moved-out or cancelled dates, plus reschedule
// destinations and ad-hoc registrations. Occupancy is annotated against the
// professor-wide state so capacity_left reflects every student, not just this
// one.
func (s *OccurrenceService) ListForStudent(ctx context.Context, studentID string, year int, month time.Month) ([]models.Occurrence, error) {
	cacheKey := fmt.Sprintf("occurrences:student:%s:%04d-%02d", studentID, year, int(month))
	var cached []models.Occurrence
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	started := time.Now()
	monthStart, monthEnd := models.MonthRange(year, month)

	enrollments, err := s.enrollments.ListActiveForStudentMonth(ctx, studentID, year, int(month))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	reschedules, err := s.reschedules.ListForStudentRange(ctx, studentID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedules")
	}
	records, err := s.attendance.ListOverrideRecordsForStudent(ctx, studentID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance overrides")
	}

	// Student-scoped index: every delta in it belongs to this student, so
	// superseded base occurrences are dropped outright.
	idx := BuildOverrideIndex(reschedules, records, monthStart, monthEnd)

	var candidates []models.Occurrence
	for i := range enrollments {
		e := &enrollments[i]
		if !e.Assigned {
			continue
		}
		for _, slot := range e.Slots {
			key := models.SlotKey(e.ProfessorID, slot)
			for _, window := range ExpandSlot(slot, year, month, s.policy) {
				candidates = append(candidates, models.Occurrence{
					Start:       window.Start,
					End:         window.End,
					ProfessorID: e.ProfessorID,
					BranchID:    e.BranchID,
					SlotKey:     key,
					DayOfWeek:   slot.DayOfWeek,
					Capacity:    slot.Capacity,
					Origin:      models.OriginBase,
				})
			}
		}
	}
	for i := range reschedules {
		r := &reschedules[i]
		if !models.InMonth(r.ToDate, monthStart, monthEnd) {
			continue
		}
		candidates = append(candidates, rescheduleInOccurrence(r))
	}
	for i := range records {
		rec := &records[i]
		if rec.Origin != models.AttendanceOriginAdhoc || rec.Removed() || rec.Slot == nil {
			continue
		}
		duration := time.Duration(rec.Slot.EndMinute-rec.Slot.StartMinute) * time.Minute
		candidates = append(candidates, models.Occurrence{
			Start:       rec.Date,
			End:         rec.Date.Add(duration),
			ProfessorID: rec.ProfessorID,
			BranchID:    rec.BranchID,
			SlotKey:     models.SlotKey(rec.ProfessorID, *rec.Slot),
			DayOfWeek:   rec.Slot.DayOfWeek,
			Capacity:    rec.Slot.Capacity,
			Origin:      models.OriginAdhoc,
		})
	}

	resolved := ResolveOccurrences(candidates, idx, true)

	contexts := map[string]*professorContext{}
	for i := range resolved {
		profID := resolved[i].ProfessorID
		profCtx, ok := contexts[profID]
		if !ok {
			profCtx, _, err = s.loadProfessorContext(ctx, profID, year, month, monthStart, monthEnd)
			if err != nil {
				return nil, err
			}
			contexts[profID] = profCtx
		}
		AnnotateOccupancy(&resolved[i], profCtx.baseBySlot[resolved[i].SlotKey], profCtx.idx)
	}

	s.metrics.ObserveResolution("student", time.Since(started))
	if err := s.cache.Set(ctx, cacheKey, resolved, 0); err != nil {
		s.logger.Warn("failed to cache student occurrences", zap.Error(err))
	}
	return resolved, nil
}

func adhocOccurrence(session *models.AdhocSession) models.Occurrence {
	duration := time.Duration(session.Slot.EndMinute-session.Slot.StartMinute) * time.Minute
	return models.Occurrence{
		Start:       session.Date,
		End:         session.Date.Add(duration),
		ProfessorID: session.ProfessorID,
		BranchID:    session.BranchID,
		SlotKey:     session.SlotKey(),
		DayOfWeek:   session.Slot.DayOfWeek,
		Capacity:    session.Capacity,
		Origin:      models.OriginAdhoc,
	}
}

func rescheduleInOccurrence(r *models.RescheduleRequest) models.Occurrence {
	duration := time.Duration(r.SlotTo.EndMinute-r.SlotTo.StartMinute) * time.Minute
	return models.Occurrence{
		Start:       r.ToDate,
		End:         r.ToDate.Add(duration),
		ProfessorID: r.ToProfessorID,
		BranchID:    r.BranchID,
		SlotKey:     models.SlotKey(r.ToProfessorID, r.SlotTo),
		DayOfWeek:   r.SlotTo.DayOfWeek,
		Capacity:    r.SlotTo.Capacity,
		Origin:      models.OriginRescheduleIn,
	}
}
