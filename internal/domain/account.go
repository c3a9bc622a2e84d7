package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindChecking AccountKind = "CHECKING"
	AccountKindSavings  AccountKind = "SAVINGS"
)

func (k AccountKind) Valid() bool {
	return k == AccountKindChecking || k == AccountKindSavings
}

type Account struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Kind       AccountKind     `json:"kind"`
	Balance    decimal.Decimal `json:"balance"`
	// BranchID is the owning customer's branch, read together with the balance.
	BranchID  uuid.UUID `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetAccountForUpdate reads the account and locks its row until the
	// surrounding transaction ends.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error
}
