package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type taskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	FindSubmission(ctx context.Context, taskID, studentID string) (*models.Submission, error)
	UpsertSubmission(ctx context.Context, submission *models.Submission) (*models.Submission, error)
	ReviewSubmission(ctx context.Context, id string, grade float64, reviewedAt time.Time) (*models.Submission, error)
	UpdateDueDate(ctx context.Context, id string, dueAt time.Time, status models.TaskStatus) (*models.Task, error)
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// SubmitTaskRequest captures a student delivery.
type SubmitTaskRequest struct {
	FileURL  string `json:"file_url" validate:"required"`
	FileType string `json:"file_type" validate:"required"`
}

// ReviewSubmissionRequest records a grade.
type ReviewSubmissionRequest struct {
	Grade float64 `json:"grade" validate:"min=0,max=100"`
}

// ExtendDueDateRequest moves a task's due instant.
type ExtendDueDateRequest struct {
	DueAt time.Time `json:"due_at" validate:"required"`
}

// TaskService coordinates the assignment lifecycle and submissions.
type TaskService struct {
	repo      taskRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTaskService constructs TaskService.
func NewTaskService(repo taskRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// Submit upserts the student's delivery for a task. A submission that has
// been reviewed is immutable and resubmission is rejected.
func (s *TaskService) Submit(ctx context.Context, taskID, studentID string, req SubmitTaskRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "task is closed")
	}

	existing, err := s.repo.FindSubmission(ctx, taskID, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if existing != nil && existing.Status == models.SubmissionStatusReviewed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already reviewed")
	}

	submission := &models.Submission{
		TaskID:      taskID,
		StudentID:   studentID,
		FileURL:     req.FileURL,
		FileType:    req.FileType,
		SubmittedAt: s.now().UTC(),
		Status:      models.SubmissionStatusSubmitted,
	}
	if existing != nil {
		submission.ID = existing.ID
	}

	stored, err := s.repo.UpsertSubmission(ctx, submission)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	s.cache.InvalidateGroup(ctx, task.GroupID)
	s.logger.Info("submission stored", zap.String("task_id", taskID), zap.String("student_id", studentID))
	return stored, nil
}

// Review grades a delivered submission and flips it to Reviewed.
func (s *TaskService) Review(ctx context.Context, taskID, studentID string, req ReviewSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "grade must be between 0 and 100")
	}

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	submission, err := s.repo.FindSubmission(ctx, taskID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !submission.Status.Delivered() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission has not been delivered")
	}

	stored, err := s.repo.ReviewSubmission(ctx, submission.ID, req.Grade, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review submission")
	}

	s.cache.InvalidateGroup(ctx, task.GroupID)
	return stored, nil
}

// ExtendDueDate moves the due instant. Moving it into the future reopens a
// closed task; moving it into the past closes an open one.
func (s *TaskService) ExtendDueDate(ctx context.Context, taskID string, req ExtendDueDateRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid due date payload")
	}

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	status := models.TaskStatusClosed
	if req.DueAt.After(s.now()) {
		status = models.TaskStatusOpen
	}

	stored, err := s.repo.UpdateDueDate(ctx, taskID, req.DueAt.UTC(), status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update due date")
	}

	s.cache.InvalidateGroup(ctx, task.GroupID)
	s.logger.Info("task due date moved",
		zap.String("task_id", taskID),
		zap.Time("due_at", stored.DueAt),
		zap.String("status", string(stored.Status)))
	return stored, nil
}

// CloseExpired sweeps open tasks whose due instant has passed.
func (s *TaskService) CloseExpired(ctx context.Context) (int64, error) {
	closed, err := s.repo.CloseExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close expired tasks")
	}
	if closed > 0 {
		s.logger.Info("expired tasks closed", zap.Int64("count", closed))
	}
	return closed, nil
}
