package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

const customerColumns = `id, name, balance_card, frozen_balance_card, telegram_chat_id, notify_opt_in, timezone`

// CustomerRepository persists customers and their card balances.
type CustomerRepository struct {
	db *sqlx.DB
}

// NewCustomerRepository constructs the repository.
func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a customer by id.
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	var customer models.Customer
	if err := r.db.GetContext(ctx, &customer, query, id); err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &customer, nil
}

// FindByIDs returns customers for the given ids in a single query.
func (r *CustomerRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id::text = ANY($1) ORDER BY name ASC`
	var customers []models.Customer
	if err := sqlx.SelectContext(ctx, r.exec(exec), &customers, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	return customers, nil
}

// ApplyLedger adds every entry's deltas to the customer balances.
func (r *CustomerRepository) ApplyLedger(ctx context.Context, exec sqlx.ExtContext, entries []models.LedgerEntry) error {
	const query = `UPDATE customers SET balance_card = balance_card + $1, frozen_balance_card = frozen_balance_card + $2 WHERE id = $3`
	target := r.exec(exec)
	for _, entry := range entries {
		res, err := target.ExecContext(ctx, query, entry.BalanceDelta, entry.FrozenDelta, entry.CustomerID)
		if err != nil {
			return fmt.Errorf("apply ledger entry for %s: %w", entry.CustomerID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("apply ledger entry: customer %s not found", entry.CustomerID)
		}
	}
	return nil
}
