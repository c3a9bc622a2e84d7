package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

type customerRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewCustomerRepository(db SQLExecutor, logger *slog.Logger) domain.CustomerRepository {
	return &customerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *customerRepository) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, phone, branch_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.BranchID,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create customer", "customer_id", customer.ID, "error", err)
		return translate(err, "failed to create customer")
	}

	customer.CreatedAt = now
	return nil
}

func (r *customerRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	query := `
		SELECT id, name, email, phone, branch_id, created_at
		FROM customers WHERE id = $1
	`

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.BranchID,
		&customer.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Customer not found", "customer_id", id)
			return nil, errors.ErrCustomerNotFound
		}
		r.logger.Error("Failed to get customer", "customer_id", id, "error", err)
		return nil, translate(err, "failed to get customer")
	}

	return &customer, nil
}
