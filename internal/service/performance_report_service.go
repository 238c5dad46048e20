package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/pkg/dates"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type performanceGroupRepository interface {
	ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error)
	Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error)
}

// PerformanceReportRequest scopes a performance report to a teacher's
// non-archived groups.
type PerformanceReportRequest struct {
	TeacherID string
	GroupID   string
	StartDate string
	EndDate   string
	Timezone  string
}

// PerformanceReportService combines grade and attendance aggregates per
// group and computes cross-group grade dispersion.
type PerformanceReportService struct {
	groups     performanceGroupRepository
	tasks      reportTaskRepository
	attendance attendanceSessionLister
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	timezone   string
}

// NewPerformanceReportService constructs the service.
func NewPerformanceReportService(groups performanceGroupRepository, tasks reportTaskRepository, attendance attendanceSessionLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, timezone string) *PerformanceReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timezone == "" {
		timezone = dates.DefaultTimezone
	}
	return &PerformanceReportService{groups: groups, tasks: tasks, attendance: attendance, cache: cache, metrics: metrics, logger: logger, timezone: timezone}
}

// groupFigures carries the raw per-group numbers before formatting.
type groupFigures struct {
	group             models.Group
	gradeAverage      float64
	attendanceAverage float64
	taskCount         int
	gradedCount       int
	sessionCount      int
	rosterSize        int
}

// GroupReport returns the performance record for one of the teacher's
// groups.
func (s *PerformanceReportService) GroupReport(ctx context.Context, req PerformanceReportRequest) (*models.GroupPerformance, error) {
	figures, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, f := range figures {
		if f.group.ID == req.GroupID {
			record := formatGroupPerformance(f)
			return &record, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found among the teacher's groups")
}

// Overview returns every group's record plus the average-dispersion view.
// The dispersion of each pair is the population standard deviation of all
// eligible group averages; the reported group's own average is always part
// of that set.
func (s *PerformanceReportService) Overview(ctx context.Context, req PerformanceReportRequest) (*models.PerformanceReport, error) {
	req.GroupID = ""

	cacheKey := makeReportCacheKey("performance", req.TeacherID, req.StartDate, req.EndDate, req.Timezone)
	if s.cache != nil {
		var cached models.PerformanceReport
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	figures, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	averages := make([]float64, len(figures))
	for i, f := range figures {
		averages[i] = f.gradeAverage
	}
	deviation := populationStdDev(averages)

	report := &models.PerformanceReport{
		Groups:     make([]models.GroupPerformance, len(figures)),
		Dispersion: make([]models.GroupDispersion, len(figures)),
	}
	for i, f := range figures {
		report.Groups[i] = formatGroupPerformance(f)
		report.Dispersion[i] = models.GroupDispersion{
			GroupID:           f.group.ID,
			GroupName:         f.group.Name,
			GroupAverage:      formatFixed2(f.gradeAverage),
			StandardDeviation: formatFixed2(deviation),
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, 0); err != nil {
			s.logger.Warn("cache performance report", zap.Error(err))
		}
	}
	return report, nil
}

// compute resolves the request window, loads the eligible group set and fans
// out the per-group aggregation. Any sub-query failure fails the whole
// report so partial aggregates are never presented.
func (s *PerformanceReportService) compute(ctx context.Context, req PerformanceReportRequest) ([]groupFigures, error) {
	if req.TeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher scope is required")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	tz := req.Timezone
	if tz == "" {
		tz = s.timezone
	}
	window, err := dates.ResolveSpan(req.StartDate, req.EndDate, tz)
	if err != nil {
		return nil, err
	}

	groups, err := s.groups.ListByTeacher(ctx, req.TeacherID, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	if len(groups) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher has no active groups")
	}
	if req.GroupID != "" {
		found := false
		for _, group := range groups {
			if group.ID == req.GroupID {
				found = true
				break
			}
		}
		if !found {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found among the teacher's groups")
		}
	}

	start := time.Now()
	figures := make([]groupFigures, len(groups))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range groups {
		i := i
		eg.Go(func() error {
			f, err := s.computeGroup(egCtx, groups[i], window)
			if err != nil {
				return err
			}
			mu.Lock()
			figures[i] = f
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate group performance")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("performance_report", time.Since(start))
	}
	return figures, nil
}

func (s *PerformanceReportService) computeGroup(ctx context.Context, group models.Group, window dates.Range) (groupFigures, error) {
	roster, err := s.groups.Roster(ctx, group.ID)
	if err != nil {
		return groupFigures{}, err
	}
	rosterSet := make(map[string]struct{}, len(roster))
	for _, member := range roster {
		rosterSet[member.StudentID] = struct{}{}
	}

	tasks, err := s.tasks.List(ctx, models.TaskFilter{GroupID: group.ID, DueFrom: &window.Start, DueTo: &window.End})
	if err != nil {
		return groupFigures{}, err
	}

	var grades []float64
	if len(tasks) > 0 {
		taskIDs := make([]string, len(tasks))
		for i, task := range tasks {
			taskIDs[i] = task.ID
		}
		submissions, err := s.tasks.SubmissionsForTasks(ctx, taskIDs)
		if err != nil {
			return groupFigures{}, err
		}
		for _, taskSubmissions := range submissions {
			for _, submission := range taskSubmissions {
				if _, enrolled := rosterSet[submission.StudentID]; !enrolled {
					continue
				}
				if submission.Grade != nil {
					grades = append(grades, *submission.Grade)
				}
			}
		}
	}

	sessions, err := s.attendance.ListSessions(ctx, group.ID, window.Start, window.End)
	if err != nil {
		return groupFigures{}, err
	}
	var presences int
	for _, session := range sessions {
		for _, entry := range session.Entries {
			if _, enrolled := rosterSet[entry.StudentID]; !enrolled {
				continue
			}
			if entry.Present {
				presences++
			}
		}
	}

	var attendanceAverage float64
	if len(sessions) > 0 && len(roster) > 0 {
		attendanceAverage = float64(presences) / float64(len(sessions)*len(roster)) * 100
	}

	return groupFigures{
		group:             group,
		gradeAverage:      mean(grades),
		attendanceAverage: attendanceAverage,
		taskCount:         len(tasks),
		gradedCount:       len(grades),
		sessionCount:      len(sessions),
		rosterSize:        len(roster),
	}, nil
}

func formatGroupPerformance(f groupFigures) models.GroupPerformance {
	return models.GroupPerformance{
		GroupID:           f.group.ID,
		GroupName:         f.group.Name,
		GroupAverage:      formatFixed2(f.gradeAverage),
		AttendanceAverage: formatFixed2(f.attendanceAverage),
		TaskCount:         f.taskCount,
		GradedSubmissions: f.gradedCount,
		SessionCount:      f.sessionCount,
		RosterSize:        f.rosterSize,
	}
}
