package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

// The owning customer's branch is joined into every read so authorization
// and balance always come from the same snapshot.
const selectAccount = `
	SELECT a.id, a.customer_id, a.kind, a.balance, c.branch_id, a.created_at, a.updated_at
	FROM accounts a
	JOIN customers c ON c.id = a.customer_id
	WHERE a.id = $1
`

func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, customer_id, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		query,
		account.ID,
		account.CustomerID,
		account.Kind,
		account.Balance.StringFixed(domain.MoneyScale),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "account_id", account.ID, "error", err)
		return translate(err, "failed to create account")
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Info("Account created successfully", "account_id", account.ID, "customer_id", account.CustomerID)
	return nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.scanAccount(ctx, selectAccount, id)
}

func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.scanAccount(ctx, selectAccount+" FOR UPDATE OF a", id)
}

func (r *accountRepository) scanAccount(ctx context.Context, query string, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.CustomerID,
		&account.Kind,
		&balanceStr,
		&account.BranchID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", "account_id", id)
			return nil, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", "account_id", id, "error", err)
		return nil, translate(err, "failed to get account")
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		r.logger.Error("Failed to parse balance", "account_id", id, "balance_str", balanceStr, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to parse balance").WithDetails(err.Error())
	}

	account.Balance = balance
	return &account, nil
}

func (r *accountRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, newBalance.StringFixed(domain.MoneyScale), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update account balance", "account_id", id, "error", err)
		return translate(err, "failed to update account balance")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}

	if rowsAffected == 0 {
		r.logger.Warn("No account found to update", "account_id", id)
		return errors.ErrAccountNotFound
	}

	r.logger.Info("Account balance updated", "account_id", id, "new_balance", newBalance.StringFixed(domain.MoneyScale))
	return nil
}
