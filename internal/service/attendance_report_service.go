package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/pkg/dates"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type reportGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error)
}

type attendanceSessionLister interface {
	ListSessions(ctx context.Context, groupID string, from, to time.Time) ([]models.AttendanceSession, error)
}

// AttendanceReportRequest scopes an attendance report.
type AttendanceReportRequest struct {
	GroupID   string
	StudentID string
	StartDate string
	EndDate   string
	Timezone  string
}

// AttendanceReportService aggregates attendance sessions into per-student
// summaries and per-session detail rows.
type AttendanceReportService struct {
	groups     reportGroupRepository
	attendance attendanceSessionLister
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	timezone   string
}

// NewAttendanceReportService constructs the service. timezone is the default
// IANA zone applied when a request does not carry one.
func NewAttendanceReportService(groups reportGroupRepository, attendance attendanceSessionLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, timezone string) *AttendanceReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timezone == "" {
		timezone = dates.DefaultTimezone
	}
	return &AttendanceReportService{groups: groups, attendance: attendance, cache: cache, metrics: metrics, logger: logger, timezone: timezone}
}

// GroupSummary computes present/absent counts and percentages for every
// roster member over the date range. A session that carries no entry for a
// student leaves that session out of the student's denominator entirely.
func (s *AttendanceReportService) GroupSummary(ctx context.Context, req AttendanceReportRequest) ([]models.AttendanceStudentSummary, error) {
	if req.GroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group_id is required")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	tz := s.zone(req.Timezone)
	window, err := dates.ResolveSpan(req.StartDate, req.EndDate, tz)
	if err != nil {
		return nil, err
	}

	cacheKey := makeReportCacheKey("attendance", req.GroupID, req.StartDate, req.EndDate, tz)
	var cached []models.AttendanceStudentSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	roster, sessions, err := s.loadGroupData(ctx, req.GroupID, window)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.AttendanceStudentSummary, 0, len(roster))
	for _, member := range roster {
		var present, absent int
		for _, session := range sessions {
			entry, ok := session.EntryFor(member.StudentID)
			if !ok {
				continue
			}
			if entry.Present {
				present++
			} else {
				absent++
			}
		}
		attendancePct := percentage(present, present+absent)
		var absencePct float64
		if present+absent > 0 {
			absencePct = 100 - attendancePct
		}
		summaries = append(summaries, models.AttendanceStudentSummary{
			StudentID:            member.StudentID,
			StudentName:          member.StudentName,
			RollNumber:           member.RollNumber,
			PresentCount:         present,
			AbsentCount:          absent,
			AttendancePercentage: formatFixed2(attendancePct),
			AbsencePercentage:    formatFixed2(absencePct),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summaries, 0); err != nil {
			s.logger.Warn("cache attendance summary", zap.Error(err))
		}
	}
	return summaries, nil
}

// StudentDetail emits one labeled row per session in range for a single
// student. EndDate defaults to StartDate for the single-day mode.
func (s *AttendanceReportService) StudentDetail(ctx context.Context, req AttendanceReportRequest) (*models.AttendanceStudentDetail, error) {
	if req.GroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group_id is required")
	}
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if req.StartDate == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date is required")
	}
	if req.EndDate == "" {
		req.EndDate = req.StartDate
	}
	tz := s.zone(req.Timezone)
	window, err := dates.ResolveSpan(req.StartDate, req.EndDate, tz)
	if err != nil {
		return nil, err
	}

	roster, sessions, err := s.loadGroupData(ctx, req.GroupID, window)
	if err != nil {
		return nil, err
	}

	var member *models.RosterEntry
	for i := range roster {
		if roster[i].StudentID == req.StudentID {
			member = &roster[i]
			break
		}
	}
	if member == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in group")
	}

	detail := &models.AttendanceStudentDetail{
		StudentID:   member.StudentID,
		StudentName: member.StudentName,
		GroupID:     req.GroupID,
		Rows:        make([]models.AttendanceDetailRow, 0, len(sessions)),
	}
	for _, session := range sessions {
		localDate, err := dates.FormatLocalDate(session.Date, tz)
		if err != nil {
			return nil, err
		}
		label := models.AttendanceLabelNoRecord
		if entry, ok := session.EntryFor(req.StudentID); ok {
			if entry.Present {
				label = models.AttendanceLabelAttended
			} else {
				label = models.AttendanceLabelAbsent
			}
		}
		detail.Rows = append(detail.Rows, models.AttendanceDetailRow{Date: localDate, Status: label})
	}
	return detail, nil
}

func (s *AttendanceReportService) loadGroupData(ctx context.Context, groupID string, window dates.Range) ([]models.RosterEntry, []models.AttendanceSession, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	roster, err := s.groups.Roster(ctx, groupID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	start := time.Now()
	sessions, err := s.attendance.ListSessions(ctx, groupID, window.Start, window.End)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sessions")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("attendance_sessions", time.Since(start))
	}
	return roster, sessions, nil
}

func (s *AttendanceReportService) zone(tz string) string {
	if tz == "" {
		return s.timezone
	}
	return tz
}

func makeReportCacheKey(parts ...string) string {
	key := "reports"
	for _, part := range parts {
		if part == "" {
			continue
		}
		key += ":" + part
	}
	return key
}
