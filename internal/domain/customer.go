package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Branch struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	BranchID uuid.UUID `json:"branch_id"`
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	BranchID  uuid.UUID `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
}

// DirectoryRepository holds the branch and staff records the ledger refers to.
type DirectoryRepository interface {
	UpsertBranch(ctx context.Context, branch *Branch) error
	UpsertUser(ctx context.Context, user *User) error
}
