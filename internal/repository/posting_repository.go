package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

type postingRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewPostingRepository(db SQLExecutor, logger *slog.Logger) domain.PostingRepository {
	return &postingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *postingRepository) CreatePosting(ctx context.Context, posting *domain.Posting) error {
	query := `
		INSERT INTO transactions (id, account_id, kind, amount, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		query,
		posting.ID,
		posting.AccountID,
		posting.Kind,
		posting.Amount.StringFixed(domain.MoneyScale),
		posting.PerformedBy,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create posting",
			"account_id", posting.AccountID,
			"kind", posting.Kind,
			"amount", posting.Amount.String(),
			"error", err)
		return translate(err, "failed to create posting")
	}

	posting.CreatedAt = now
	r.logger.Info("Posting created successfully", "posting_id", posting.ID, "account_id", posting.AccountID)
	return nil
}

func (r *postingRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Posting, error) {
	query := `
		SELECT id, account_id, kind, amount, performed_by, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	return r.scanPostings(ctx, query, accountID, limit)
}

func (r *postingRepository) ListByBranch(ctx context.Context, branchID uuid.UUID, limit int) ([]*domain.Posting, error) {
	query := `
		SELECT t.id, t.account_id, t.kind, t.amount, t.performed_by, t.created_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		JOIN customers c ON c.id = a.customer_id
		WHERE c.branch_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2
	`

	return r.scanPostings(ctx, query, branchID, limit)
}

func (r *postingRepository) NetByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'DEPOSIT' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE account_id = $1
	`

	var netStr string
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&netStr); err != nil {
		r.logger.Error("Failed to sum postings", "account_id", accountID, "error", err)
		return decimal.Zero, translate(err, "failed to sum postings")
	}

	net, err := decimal.NewFromString(netStr)
	if err != nil {
		return decimal.Zero, errors.NewAppError(errors.InternalError, "failed to parse posting sum").WithDetails(err.Error())
	}
	return net, nil
}

func (r *postingRepository) scanPostings(ctx context.Context, query string, arg uuid.UUID, limit int) ([]*domain.Posting, error) {
	rows, err := r.db.QueryContext(ctx, query, arg, limit)
	if err != nil {
		r.logger.Error("Failed to list postings", "arg", arg, "error", err)
		return nil, translate(err, "failed to list postings")
	}
	defer rows.Close()

	postings := make([]*domain.Posting, 0)
	for rows.Next() {
		var posting domain.Posting
		var amountStr string

		if err := rows.Scan(
			&posting.ID,
			&posting.AccountID,
			&posting.Kind,
			&amountStr,
			&posting.PerformedBy,
			&posting.CreatedAt,
		); err != nil {
			return nil, translate(err, "failed to scan posting")
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		posting.Amount = amount
		postings = append(postings, &posting)
	}

	if err := rows.Err(); err != nil {
		return nil, translate(err, "failed to list postings")
	}
	return postings, nil
}
