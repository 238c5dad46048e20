package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aulago/aula-api/internal/models"
)

// ExportJobRepository persists background export job metadata.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository instantiates the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job row.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) (*models.ExportJob, error) {
	job.ID = uuid.NewString()
	job.Status = models.ExportStatusQueued
	job.CreatedAt = time.Now().UTC()
	query := `INSERT INTO export_jobs (id, type, params, status, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, job.ID, job.Type, job.Params, job.Status, job.CreatedBy, job.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert export job: %w", err)
	}
	return job, nil
}

// FindByID returns the job row or sql.ErrNoRows.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	query := `SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing flags the job as picked up by a worker.
func (r *ExportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE export_jobs SET status = $2 WHERE id = $1`, id, models.ExportStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}
	return nil
}

// MarkFinished stores the signed download URL and completion instant.
func (r *ExportJobRepository) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = $2, result_url = $3, finished_at = $4 WHERE id = $1`,
		id, models.ExportStatusFinished, resultURL, finishedAt)
	if err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`,
		id, models.ExportStatusFailed, reason, finishedAt)
	if err != nil {
		return fmt.Errorf("mark export job failed: %w", err)
	}
	return nil
}
