package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

const centerColumns = `id, name, is_center, parent_center_id, timezone, working_hours_utc, working_hours_local, created_at, updated_at`

// CenterRepository persists centers and courts. Courts are center rows with a
// parent id, looked up by that id rather than through object links.
type CenterRepository struct {
	db *sqlx.DB
}

// NewCenterRepository constructs the repository.
func NewCenterRepository(db *sqlx.DB) *CenterRepository {
	return &CenterRepository{db: db}
}

func (r *CenterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a center or court by id.
func (r *CenterRepository) FindByID(ctx context.Context, id string) (*models.Center, error) {
	query := `SELECT ` + centerColumns + ` FROM centers WHERE id = $1`
	var center models.Center
	if err := r.db.GetContext(ctx, &center, query, id); err != nil {
		return nil, fmt.Errorf("find center: %w", err)
	}
	return &center, nil
}

// ListCenters returns top-level centers ordered by name.
func (r *CenterRepository) ListCenters(ctx context.Context) ([]models.Center, error) {
	query := `SELECT ` + centerColumns + ` FROM centers WHERE is_center ORDER BY name ASC`
	var centers []models.Center
	if err := r.db.SelectContext(ctx, &centers, query); err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	return centers, nil
}

// ListCourts returns the courts whose parent is centerID.
func (r *CenterRepository) ListCourts(ctx context.Context, centerID string) ([]models.Center, error) {
	query := `SELECT ` + centerColumns + ` FROM centers WHERE parent_center_id = $1 ORDER BY name ASC`
	var courts []models.Center
	if err := r.db.SelectContext(ctx, &courts, query, centerID); err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	return courts, nil
}

// NameTaken reports whether another top-level center already uses name.
func (r *CenterRepository) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM centers WHERE is_center AND name = $1 AND id::text <> $2)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check center name: %w", err)
	}
	return taken, nil
}

// Create inserts a center or court.
func (r *CenterRepository) Create(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error {
	if center.ID == "" {
		center.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	center.CreatedAt = now
	center.UpdatedAt = now

	const query = `INSERT INTO centers (` + centerColumns + `)
VALUES (:id, :name, :is_center, :parent_center_id, :timezone, :working_hours_utc, :working_hours_local, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, center); err != nil {
		return fmt.Errorf("create center: %w", err)
	}
	return nil
}

// Update stores the mutable center fields.
func (r *CenterRepository) Update(ctx context.Context, exec sqlx.ExtContext, center *models.Center) error {
	center.UpdatedAt = time.Now().UTC()
	const query = `UPDATE centers SET name = :name, is_center = :is_center, parent_center_id = :parent_center_id,
timezone = :timezone, working_hours_utc = :working_hours_utc, working_hours_local = :working_hours_local, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, center); err != nil {
		return fmt.Errorf("update center: %w", err)
	}
	return nil
}
