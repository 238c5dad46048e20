package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aulago/aula-api/internal/models"
)

// TaskRepository persists tasks and their submissions.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository instantiates the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns the task or sql.ErrNoRows.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	query := `SELECT id, group_id, title, description, due_at, total_points, status, created_at, updated_at FROM tasks WHERE id = $1`
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks matching the filter ordered by due instant.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT id, group_id, title, description, due_at, total_points, status, created_at, updated_at FROM tasks WHERE 1=1`)
	var args []interface{}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		builder.WriteString(fmt.Sprintf(" AND group_id = $%d", len(args)))
	}
	if filter.TaskID != "" {
		args = append(args, filter.TaskID)
		builder.WriteString(fmt.Sprintf(" AND id = $%d", len(args)))
	}
	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		builder.WriteString(fmt.Sprintf(" AND title ILIKE $%d", len(args)))
	}
	if filter.DueFrom != nil {
		args = append(args, *filter.DueFrom)
		builder.WriteString(fmt.Sprintf(" AND due_at >= $%d", len(args)))
	}
	if filter.DueTo != nil {
		args = append(args, *filter.DueTo)
		builder.WriteString(fmt.Sprintf(" AND due_at <= $%d", len(args)))
	}
	builder.WriteString(" ORDER BY due_at")

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// SubmissionsForTasks loads every submission belonging to the given tasks,
// keyed by task id.
func (r *TaskRepository) SubmissionsForTasks(ctx context.Context, taskIDs []string) (map[string][]models.Submission, error) {
	result := make(map[string][]models.Submission, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT id, task_id, student_id, file_url, file_type, submitted_at, status, grade, reviewed_at
        FROM submissions WHERE task_id IN (?)`, taskIDs)
	if err != nil {
		return nil, err
	}
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	for _, submission := range submissions {
		result[submission.TaskID] = append(result[submission.TaskID], submission)
	}
	return result, nil
}

// FindSubmission returns the (task, student) submission or sql.ErrNoRows.
func (r *TaskRepository) FindSubmission(ctx context.Context, taskID, studentID string) (*models.Submission, error) {
	var submission models.Submission
	query := `SELECT id, task_id, student_id, file_url, file_type, submitted_at, status, grade, reviewed_at
        FROM submissions WHERE task_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &submission, query, taskID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// UpsertSubmission inserts or replaces the student's submission. The
// uniqueness constraint on (task_id, student_id) keeps at most one row; the
// service guards the reviewed-immutability rule before calling.
func (r *TaskRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) (*models.Submission, error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	query := `INSERT INTO submissions (id, task_id, student_id, file_url, file_type, submitted_at, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (task_id, student_id) DO UPDATE
        SET file_url = EXCLUDED.file_url,
            file_type = EXCLUDED.file_type,
            submitted_at = EXCLUDED.submitted_at,
            status = EXCLUDED.status
        RETURNING id, task_id, student_id, file_url, file_type, submitted_at, status, grade, reviewed_at`
	var stored models.Submission
	if err := r.db.GetContext(ctx, &stored, query,
		submission.ID, submission.TaskID, submission.StudentID,
		submission.FileURL, submission.FileType, submission.SubmittedAt, submission.Status); err != nil {
		return nil, fmt.Errorf("upsert submission: %w", err)
	}
	return &stored, nil
}

// ReviewSubmission records the grade and flips the submission to Reviewed.
func (r *TaskRepository) ReviewSubmission(ctx context.Context, id string, grade float64, reviewedAt time.Time) (*models.Submission, error) {
	query := `UPDATE submissions SET grade = $2, status = $3, reviewed_at = $4 WHERE id = $1
        RETURNING id, task_id, student_id, file_url, file_type, submitted_at, status, grade, reviewed_at`
	var stored models.Submission
	if err := r.db.GetContext(ctx, &stored, query, id, grade, models.SubmissionStatusReviewed, reviewedAt); err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateDueDate moves the due instant and sets the resulting status.
func (r *TaskRepository) UpdateDueDate(ctx context.Context, id string, dueAt time.Time, status models.TaskStatus) (*models.Task, error) {
	query := `UPDATE tasks SET due_at = $2, status = $3, updated_at = NOW() WHERE id = $1
        RETURNING id, group_id, title, description, due_at, total_points, status, created_at, updated_at`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id, dueAt, status); err != nil {
		return nil, err
	}
	return &task, nil
}

// CloseExpired flips every open task whose due instant has passed and
// returns how many were closed.
func (r *TaskRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, updated_at = NOW() WHERE status = $2 AND due_at < $3`,
		models.TaskStatusClosed, models.TaskStatusOpen, now)
	if err != nil {
		return 0, fmt.Errorf("close expired tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close expired rows affected: %w", err)
	}
	return affected, nil
}
