package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

const trainingColumns = `id, name, kind, status, center_id, court_id, product_id, instructor_id, customer_ids, time_begin, time_finish,
price_per_hour_total, payment_to_instructor_per_hour, repeat_until, repeat_frequency, recurrence_expanded, snapshot, created_by, created_at, updated_at`

// TrainingRepository persists training sessions, including free slots and
// non-working blocks.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository constructs the repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

func (r *TrainingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a training by id.
func (r *TrainingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE id = $1`
	var training models.TrainingSession
	if err := sqlx.GetContext(ctx, r.exec(exec), &training, query, id); err != nil {
		return nil, fmt.Errorf("find training: %w", err)
	}
	return &training, nil
}

// FindByIDs returns the trainings matching ids ordered by start.
func (r *TrainingRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.TrainingSession, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE id::text = ANY($1) ORDER BY time_begin ASC`
	var trainings []models.TrainingSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trainings, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find trainings: %w", err)
	}
	return trainings, nil
}

// Create inserts a training.
func (r *TrainingRepository) Create(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error {
	if training.ID == "" {
		training.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	training.CreatedAt = now
	training.UpdatedAt = now
	if training.CustomerIDs == nil {
		training.CustomerIDs = pq.StringArray{}
	}
	if training.RepeatFrequency == "" {
		training.RepeatFrequency = models.RepeatOneTime
	}

	const query = `INSERT INTO trainings (` + trainingColumns + `)
VALUES (:id, :name, :kind, :status, :center_id, :court_id, :product_id, :instructor_id, :customer_ids, :time_begin, :time_finish,
:price_per_hour_total, :payment_to_instructor_per_hour, :repeat_until, :repeat_frequency, :recurrence_expanded, :snapshot, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, training); err != nil {
		return fmt.Errorf("create training: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of a training.
func (r *TrainingRepository) Update(ctx context.Context, exec sqlx.ExtContext, training *models.TrainingSession) error {
	training.UpdatedAt = time.Now().UTC()
	if training.CustomerIDs == nil {
		training.CustomerIDs = pq.StringArray{}
	}
	const query = `UPDATE trainings SET name = :name, kind = :kind, status = :status, center_id = :center_id, court_id = :court_id,
product_id = :product_id, instructor_id = :instructor_id, customer_ids = :customer_ids, time_begin = :time_begin, time_finish = :time_finish,
price_per_hour_total = :price_per_hour_total, payment_to_instructor_per_hour = :payment_to_instructor_per_hour,
repeat_until = :repeat_until, repeat_frequency = :repeat_frequency, recurrence_expanded = :recurrence_expanded,
snapshot = :snapshot, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, training)
	if err != nil {
		return fmt.Errorf("update training: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update training %s: no rows", training.ID)
	}
	return nil
}

// DeleteByIDs removes trainings.
func (r *TrainingRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM trainings WHERE id::text = ANY($1)`
	if _, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete trainings: %w", err)
	}
	return nil
}

// ListCourtWindow returns non-cancelled rows on a court overlapping [begin, finish).
func (r *TrainingRepository) ListCourtWindow(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE court_id = $1 AND status <> 'cancelled' AND time_begin < $3 AND time_finish > $2 ORDER BY time_begin ASC`
	var trainings []models.TrainingSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trainings, query, courtID, begin, finish); err != nil {
		return nil, fmt.Errorf("list court trainings: %w", err)
	}
	return trainings, nil
}

// ListCourtRange returns non-cancelled rows on a court touching [begin, finish].
// Bounds are inclusive so blocks ending at begin or starting at finish are included.
func (r *TrainingRepository) ListCourtRange(ctx context.Context, exec sqlx.ExtContext, courtID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE court_id = $1 AND status <> 'cancelled' AND time_begin <= $3 AND time_finish >= $2 ORDER BY time_begin ASC`
	var trainings []models.TrainingSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trainings, query, courtID, begin, finish); err != nil {
		return nil, fmt.Errorf("list court range: %w", err)
	}
	return trainings, nil
}

// ListInstructorOverlaps returns real, non-cancelled trainings of an
// instructor overlapping [begin, finish) on any court.
func (r *TrainingRepository) ListInstructorOverlaps(ctx context.Context, exec sqlx.ExtContext, instructorID string, begin, finish time.Time) ([]models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE instructor_id = $1 AND kind = 'real' AND status <> 'cancelled' AND time_begin < $3 AND time_finish > $2`
	var trainings []models.TrainingSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trainings, query, instructorID, begin, finish); err != nil {
		return nil, fmt.Errorf("list instructor trainings: %w", err)
	}
	return trainings, nil
}

// ListCustomerOverlaps returns real, non-cancelled trainings sharing a
// customer with customerIDs and overlapping [begin, finish).
func (r *TrainingRepository) ListCustomerOverlaps(ctx context.Context, exec sqlx.ExtContext, customerIDs []string, begin, finish time.Time) ([]models.TrainingSession, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE customer_ids && $1 AND kind = 'real' AND status <> 'cancelled' AND time_begin < $3 AND time_finish > $2`
	var trainings []models.TrainingSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trainings, query, pq.Array(customerIDs), begin, finish); err != nil {
		return nil, fmt.Errorf("list customer trainings: %w", err)
	}
	return trainings, nil
}

// CountPlaceholders counts free slots and non-working blocks of a court
// overlapping [begin, finish).
func (r *TrainingRepository) CountPlaceholders(ctx context.Context, courtID string, begin, finish time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM trainings
WHERE court_id = $1 AND kind IN ('free_slot', 'non_working') AND time_begin < $3 AND time_finish > $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courtID, begin, finish); err != nil {
		return 0, fmt.Errorf("count placeholders: %w", err)
	}
	return count, nil
}

// DeletePlaceholdersByCenter removes untouched free slots and non-working
// blocks of every court of a center.
func (r *TrainingRepository) DeletePlaceholdersByCenter(ctx context.Context, exec sqlx.ExtContext, centerID string) (int64, error) {
	const query = `DELETE FROM trainings
WHERE center_id = $1 AND kind IN ('free_slot', 'non_working') AND status IN ('new', 'unavailable')`
	res, err := r.exec(exec).ExecContext(ctx, query, centerID)
	if err != nil {
		return 0, fmt.Errorf("delete center placeholders: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListFinishedBefore returns trainings in statuses whose finish is at or
// before cutoff.
func (r *TrainingRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, statuses []models.TrainingStatus, limit int) ([]models.TrainingSession, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE status = ANY($1) AND time_finish <= $2 ORDER BY time_finish ASC LIMIT $3`
	var trainings []models.TrainingSession
	if err := r.db.SelectContext(ctx, &trainings, query, pq.Array(statusStrings(statuses)), cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished trainings: %w", err)
	}
	return trainings, nil
}

// ListStartingBetween returns real trainings in statuses beginning within [from, to].
func (r *TrainingRepository) ListStartingBetween(ctx context.Context, from, to time.Time, statuses []models.TrainingStatus) ([]models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings
WHERE kind = 'real' AND status = ANY($1) AND time_begin >= $2 AND time_begin <= $3 ORDER BY time_begin ASC`
	var trainings []models.TrainingSession
	if err := r.db.SelectContext(ctx, &trainings, query, pq.Array(statusStrings(statuses)), from, to); err != nil {
		return nil, fmt.Errorf("list upcoming trainings: %w", err)
	}
	return trainings, nil
}

// List returns trainings matching filter together with the total count.
func (r *TrainingRepository) List(ctx context.Context, filter models.TrainingFilter) ([]models.TrainingSession, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)
	argPos := 1

	if filter.CenterID != "" {
		conditions = append(conditions, fmt.Sprintf("center_id = $%d", argPos))
		args = append(args, filter.CenterID)
		argPos++
	}
	if filter.CourtID != "" {
		conditions = append(conditions, fmt.Sprintf("court_id = $%d", argPos))
		args = append(args, filter.CourtID)
		argPos++
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argPos))
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		argPos++
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, kind := range filter.Kinds {
			kinds = append(kinds, string(kind))
		}
		conditions = append(conditions, fmt.Sprintf("kind = ANY($%d)", argPos))
		args = append(args, pq.Array(kinds))
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("time_finish > $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("time_begin < $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM trainings"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count trainings: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 500 {
		size = 100
	}
	query := fmt.Sprintf("SELECT %s FROM trainings%s ORDER BY time_begin ASC LIMIT $%d OFFSET $%d", trainingColumns, where, argPos, argPos+1)
	args = append(args, size, (page-1)*size)

	var trainings []models.TrainingSession
	if err := r.db.SelectContext(ctx, &trainings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list trainings: %w", err)
	}
	return trainings, total, nil
}

func statusStrings(statuses []models.TrainingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
