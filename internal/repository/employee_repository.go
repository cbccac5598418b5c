package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

const employeeColumns = `id, user_id, name, working_center_id, is_instructor, rate_personal, rate_split, rate_group, rate_other`

// EmployeeRepository reads club staff.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns an employee by id.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &employee, nil
}

// FindByUserID returns the employee linked to an application user.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE user_id = $1`
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, userID); err != nil {
		return nil, fmt.Errorf("find employee by user: %w", err)
	}
	return &employee, nil
}
