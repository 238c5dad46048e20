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

type reportTaskRepository interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	SubmissionsForTasks(ctx context.Context, taskIDs []string) (map[string][]models.Submission, error)
}

// TaskReportRequest scopes a task report.
type TaskReportRequest struct {
	GroupID   string
	TaskID    string
	StudentID string
	Title     string
	StartDate string
	EndDate   string
	Timezone  string
}

// TaskReportService aggregates tasks and submissions into per-task detail
// rows and per-student summaries.
type TaskReportService struct {
	groups   reportGroupRepository
	tasks    reportTaskRepository
	metrics  *MetricsService
	logger   *zap.Logger
	timezone string
}

// NewTaskReportService constructs the service.
func NewTaskReportService(groups reportGroupRepository, tasks reportTaskRepository, metrics *MetricsService, logger *zap.Logger, timezone string) *TaskReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timezone == "" {
		timezone = dates.DefaultTimezone
	}
	return &TaskReportService{groups: groups, tasks: tasks, metrics: metrics, logger: logger, timezone: timezone}
}

// StudentDetail emits one row per filtered task for a single student,
// collapsing submission state to Submitted/Pending/Not submitted together
// with the on-time flag and grade.
func (s *TaskReportService) StudentDetail(ctx context.Context, req TaskReportRequest) ([]models.TaskDetailRow, error) {
	roster, tasks, submissions, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	var studentName string
	for _, member := range roster {
		if member.StudentID == req.StudentID {
			studentName = member.StudentName
			break
		}
	}
	if studentName == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in group")
	}

	rows := make([]models.TaskDetailRow, 0, len(tasks))
	for _, task := range tasks {
		row := models.TaskDetailRow{
			TaskID:      task.ID,
			Title:       task.Title,
			DueAt:       task.DueAt,
			StudentName: studentName,
			Status:      "Not submitted",
		}
		for _, submission := range submissions[task.ID] {
			if submission.StudentID != req.StudentID {
				continue
			}
			switch submission.Status {
			case models.SubmissionStatusPending:
				row.Status = "Pending"
			default:
				row.Status = "Submitted"
			}
			row.OnTime = submission.OnTime(task.DueAt)
			row.Grade = submission.Grade
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GroupSummary aggregates delivery and grading per roster member across the
// filtered tasks.
func (s *TaskReportService) GroupSummary(ctx context.Context, req TaskReportRequest) ([]models.TaskStudentSummary, error) {
	roster, tasks, submissions, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.TaskStudentSummary, 0, len(roster))
	for _, member := range roster {
		var delivered, onTime, graded int
		var gradeSum float64
		for _, task := range tasks {
			for _, submission := range submissions[task.ID] {
				if submission.StudentID != member.StudentID {
					continue
				}
				if submission.Status.Delivered() {
					delivered++
					if submission.OnTime(task.DueAt) {
						onTime++
					}
				}
				if submission.Grade != nil {
					graded++
					gradeSum += *submission.Grade
				}
				break
			}
		}

		average := models.GradeNotAvailable
		if graded > 0 {
			average = formatFixed2(gradeSum / float64(graded))
		}
		summaries = append(summaries, models.TaskStudentSummary{
			StudentID:        member.StudentID,
			StudentName:      member.StudentName,
			RollNumber:       member.RollNumber,
			TotalTasks:       len(tasks),
			Delivered:        delivered,
			OnTime:           onTime,
			OnTimePercentage: formatFixed2(percentage(onTime, len(tasks))),
			AverageGrade:     average,
		})
	}
	return summaries, nil
}

func (s *TaskReportService) load(ctx context.Context, req TaskReportRequest) ([]models.RosterEntry, []models.Task, map[string][]models.Submission, error) {
	if req.GroupID == "" {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "group_id is required")
	}

	if _, err := s.groups.FindByID(ctx, req.GroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	filter := models.TaskFilter{GroupID: req.GroupID, TaskID: req.TaskID, Title: req.Title}
	if req.StartDate != "" || req.EndDate != "" {
		if req.StartDate == "" || req.EndDate == "" {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrValidation, "both start_date and end_date are required for a date filter")
		}
		window, err := dates.ResolveSpan(req.StartDate, req.EndDate, s.zone(req.Timezone))
		if err != nil {
			return nil, nil, nil, err
		}
		filter.DueFrom = &window.Start
		filter.DueTo = &window.End
	}

	start := time.Now()
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("report_tasks", time.Since(start))
	}
	if len(tasks) == 0 {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no tasks match the given filters")
	}

	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		taskIDs[i] = task.ID
	}
	submissions, err := s.tasks.SubmissionsForTasks(ctx, taskIDs)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	roster, err := s.groups.Roster(ctx, req.GroupID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, tasks, submissions, nil
}

func (s *TaskReportService) zone(tz string) string {
	if tz == "" {
		return s.timezone
	}
	return tz
}
