package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PostingKind string

const (
	PostingKindDeposit    PostingKind = "DEPOSIT"
	PostingKindWithdrawal PostingKind = "WITHDRAWAL"
)

func (k PostingKind) Valid() bool {
	return k == PostingKindDeposit || k == PostingKindWithdrawal
}

// Posting is one immutable entry of an account's ledger, stored in the
// transactions table.
type Posting struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Kind        PostingKind     `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	PerformedBy uuid.UUID       `json:"performed_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Apply returns the balance that results from posting p against balance.
// It does not check funds.
func (p *Posting) Apply(balance decimal.Decimal) decimal.Decimal {
	if p.Kind == PostingKindWithdrawal {
		return balance.Sub(p.Amount)
	}
	return balance.Add(p.Amount)
}

type PostingRepository interface {
	CreatePosting(ctx context.Context, posting *Posting) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*Posting, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, limit int) ([]*Posting, error)
	// NetByAccount is the sum of deposits minus the sum of withdrawals.
	NetByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}
