package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
	"github.com/aulago/aula-api/pkg/export"
	"github.com/aulago/aula-api/pkg/jobs"
	"github.com/aulago/aula-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) (*models.ExportJob, error)
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error
}

// ExportRequest queues a background report export.
type ExportRequest struct {
	Type      models.ExportType
	Format    models.ExportFormat
	GroupID   string
	StudentID string
	StartDate string
	EndDate   string
	Timezone  string
}

// ExportService renders reports into downloadable CSV/PDF files on a
// background worker queue and signs their download URLs.
type ExportService struct {
	jobsRepo    exportJobRepository
	attendance  *AttendanceReportService
	tasks       *TaskReportService
	performance *PerformanceReportService
	store       *storage.LocalStorage
	signer      *storage.Signer
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewExportService constructs ExportService. Call Start before enqueueing.
func NewExportService(
	jobsRepo exportJobRepository,
	attendance *AttendanceReportService,
	tasks *TaskReportService,
	performance *PerformanceReportService,
	store *storage.LocalStorage,
	signer *storage.Signer,
	queueOpts jobs.Options,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		jobsRepo:    jobsRepo,
		attendance:  attendance,
		tasks:       tasks,
		performance: performance,
		store:       store,
		signer:      signer,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("report-exports", s.process, queueOpts)
	return s
}

// Start launches the worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue persists a job row and schedules background generation.
func (s *ExportService) Enqueue(ctx context.Context, requestedBy, teacherID string, req ExportRequest) (*models.ExportJob, error) {
	switch req.Type {
	case models.ExportTypeAttendance, models.ExportTypeTasks, models.ExportTypePerformance:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export type")
	}
	switch req.Format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}
	if req.Type != models.ExportTypePerformance && req.GroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group_id is required for this export type")
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}

	job := &models.ExportJob{
		Type:      req.Type,
		CreatedBy: requestedBy,
		Params: models.ExportJobParams{
			GroupID:   req.GroupID,
			StudentID: req.StudentID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Timezone:  req.Timezone,
			Format:    req.Format,
		},
	}
	stored, err := s.jobsRepo.Create(ctx, job)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	payload := exportPayload{JobID: stored.ID, TeacherID: teacherID}
	if err := s.queue.Enqueue(jobs.Job{ID: stored.ID, Type: string(req.Type), Payload: payload}); err != nil {
		now := time.Now().UTC()
		_ = s.jobsRepo.MarkFailed(ctx, stored.ID, "export queue unavailable", now)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	s.logger.Info("export queued", zap.String("job_id", stored.ID), zap.String("type", string(req.Type)))
	return stored, nil
}

// Status returns the persisted job row.
func (s *ExportService) Status(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.jobsRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// OpenSigned verifies a download token and opens the underlying file.
func (s *ExportService) OpenSigned(ctx context.Context, token string) (*models.ExportJob, string, error) {
	jobID, relPath, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.ExportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "export is not finished")
	}
	return job, relPath, nil
}

// Store exposes the backing file store for download streaming.
func (s *ExportService) Store() *storage.LocalStorage {
	return s.store
}

type exportPayload struct {
	JobID     string
	TeacherID string
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.logger.Error("export job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	stored, err := s.jobsRepo.FindByID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", payload.JobID, err)
	}
	if err := s.jobsRepo.MarkProcessing(ctx, stored.ID); err != nil {
		return err
	}

	table, err := s.buildTable(ctx, stored, payload.TeacherID)
	if err != nil {
		now := time.Now().UTC()
		if markErr := s.jobsRepo.MarkFailed(ctx, stored.ID, err.Error(), now); markErr != nil {
			s.logger.Error("failed to mark export failed", zap.String("job_id", stored.ID), zap.Error(markErr))
		}
		// Report errors are deterministic; retrying will not help.
		s.logger.Warn("export generation failed", zap.String("job_id", stored.ID), zap.Error(err))
		return nil
	}

	var data []byte
	switch stored.Params.Format {
	case models.ExportFormatPDF:
		data, err = export.RenderPDF(*table)
	default:
		data, err = export.RenderCSV(*table)
	}
	if err != nil {
		return fmt.Errorf("render export %s: %w", stored.ID, err)
	}

	filename := fmt.Sprintf("%s/%s.%s", stored.Type, stored.ID, stored.Params.Format)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		return fmt.Errorf("store export %s: %w", stored.ID, err)
	}

	token, _, err := s.signer.Sign(stored.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign export %s: %w", stored.ID, err)
	}

	now := time.Now().UTC()
	resultURL := "/exports/download?token=" + token
	if err := s.jobsRepo.MarkFinished(ctx, stored.ID, resultURL, now); err != nil {
		return fmt.Errorf("finish export %s: %w", stored.ID, err)
	}

	s.logger.Info("export finished", zap.String("job_id", stored.ID), zap.String("file", relPath))
	return nil
}

func (s *ExportService) buildTable(ctx context.Context, job *models.ExportJob, teacherID string) (*export.Table, error) {
	params := job.Params
	switch job.Type {
	case models.ExportTypeAttendance:
		rows, err := s.attendance.GroupSummary(ctx, AttendanceReportRequest{
			GroupID:   params.GroupID,
			StartDate: params.StartDate,
			EndDate:   params.EndDate,
			Timezone:  params.Timezone,
		})
		if err != nil {
			return nil, err
		}
		return attendanceTable(params, rows), nil
	case models.ExportTypeTasks:
		rows, err := s.tasks.GroupSummary(ctx, TaskReportRequest{
			GroupID:   params.GroupID,
			StartDate: params.StartDate,
			EndDate:   params.EndDate,
			Timezone:  params.Timezone,
		})
		if err != nil {
			return nil, err
		}
		return taskTable(params, rows), nil
	case models.ExportTypePerformance:
		report, err := s.performance.Overview(ctx, PerformanceReportRequest{
			TeacherID: teacherID,
			StartDate: params.StartDate,
			EndDate:   params.EndDate,
			Timezone:  params.Timezone,
		})
		if err != nil {
			return nil, err
		}
		return performanceTable(params, report), nil
	default:
		return nil, fmt.Errorf("unknown export type %q", job.Type)
	}
}

func attendanceTable(params models.ExportJobParams, rows []models.AttendanceStudentSummary) *export.Table {
	table := &export.Table{
		Title:   fmt.Sprintf("Attendance %s to %s", params.StartDate, params.EndDate),
		Columns: []string{"Roll", "Student", "Present", "Absent", "Attendance %", "Absence %"},
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(row.RollNumber),
			row.StudentName,
			strconv.Itoa(row.PresentCount),
			strconv.Itoa(row.AbsentCount),
			row.AttendancePercentage,
			row.AbsencePercentage,
		})
	}
	return table
}

func taskTable(params models.ExportJobParams, rows []models.TaskStudentSummary) *export.Table {
	table := &export.Table{
		Title:   fmt.Sprintf("Tasks %s to %s", params.StartDate, params.EndDate),
		Columns: []string{"Roll", "Student", "Tasks", "Delivered", "On time", "On-time %", "Average grade"},
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(row.RollNumber),
			row.StudentName,
			strconv.Itoa(row.TotalTasks),
			strconv.Itoa(row.Delivered),
			strconv.Itoa(row.OnTime),
			row.OnTimePercentage,
			row.AverageGrade,
		})
	}
	return table
}

func performanceTable(params models.ExportJobParams, report *models.PerformanceReport) *export.Table {
	deviations := make(map[string]string, len(report.Dispersion))
	for _, d := range report.Dispersion {
		deviations[d.GroupID] = d.StandardDeviation
	}
	table := &export.Table{
		Title:   fmt.Sprintf("Performance %s to %s", params.StartDate, params.EndDate),
		Columns: []string{"Group", "Grade average", "Attendance average", "Tasks", "Graded", "Sessions", "Roster", "Std deviation"},
	}
	for _, group := range report.Groups {
		table.Rows = append(table.Rows, []string{
			group.GroupName,
			group.GroupAverage,
			group.AttendanceAverage,
			strconv.Itoa(group.TaskCount),
			strconv.Itoa(group.GradedSubmissions),
			strconv.Itoa(group.SessionCount),
			strconv.Itoa(group.RosterSize),
			deviations[group.GroupID],
		})
	}
	return table
}
