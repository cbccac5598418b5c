package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

const generationJobColumns = `id, name, user_id, court_id, dates, state, error_message, created_at, started_at, finished_at`

// GenerationJobRepository persists slot generation jobs.
type GenerationJobRepository struct {
	db *sqlx.DB
}

// NewGenerationJobRepository constructs the repository.
func NewGenerationJobRepository(db *sqlx.DB) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

// CreatePending inserts a pending job unless one with the same name is
// already pending. It reports whether the row was inserted.
func (r *GenerationJobRepository) CreatePending(ctx context.Context, job *models.GenerationJob) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.State = models.JobStatePending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO generation_jobs (` + generationJobColumns + `)
VALUES (:id, :name, :user_id, :court_id, :dates, :state, :error_message, :created_at, :started_at, :finished_at)
ON CONFLICT (name) WHERE state = 'pending' DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return false, fmt.Errorf("create generation job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create generation job: %w", err)
	}
	return n > 0, nil
}

// HasPending reports whether a pending job with name exists.
func (r *GenerationJobRepository) HasPending(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM generation_jobs WHERE name = $1 AND state = 'pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("check pending generation job: %w", err)
	}
	return exists, nil
}

// GetByID returns a job by id.
func (r *GenerationJobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := `SELECT ` + generationJobColumns + ` FROM generation_jobs WHERE id = $1`
	var job models.GenerationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	return &job, nil
}

// ListPending returns pending jobs oldest first.
func (r *GenerationJobRepository) ListPending(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + generationJobColumns + ` FROM generation_jobs WHERE state = 'pending' ORDER BY created_at ASC LIMIT $1`
	var jobs []models.GenerationJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list pending generation jobs: %w", err)
	}
	return jobs, nil
}

// UpdateGenerationJobParams defines the mutable fields.
type UpdateGenerationJobParams struct {
	State        *models.GenerationJobState
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *GenerationJobRepository) Update(ctx context.Context, id string, params UpdateGenerationJobParams) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if params.State != nil {
		set = append(set, fmt.Sprintf("state = $%d", argPos))
		args = append(args, *params.State)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE generation_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update generation job: %w", err)
	}
	return nil
}
