package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

type AccountService struct {
	store  domain.Store
	tx     *txRunner
	logger *slog.Logger
}

func NewAccountService(store domain.Store, policy RetryPolicy, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		tx:     newTxRunner(store, policy, logger),
		logger: logger,
	}
}

type OpenAccountRequest struct {
	CustomerID string
	Kind       string
}

// OpenAccount creates a zero-balance account for a customer of a branch the
// principal may act on. Calls are not deduplicated: identical requests open
// distinct accounts.
func (s *AccountService) OpenAccount(ctx context.Context, principal domain.Principal, req *OpenAccountRequest) (*domain.Account, error) {
	s.logger.Info("Opening account",
		"customer_id", req.CustomerID,
		"kind", req.Kind,
		"principal_id", principal.ID)

	kind := domain.AccountKind(req.Kind)
	if !kind.Valid() {
		return nil, errors.ErrInvalidAccountKind
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, errors.ErrInvalidCustomerID
	}

	var account *domain.Account
	err = s.tx.serializable(ctx, "open_account", func(store domain.Store) error {
		customer, err := store.Customer().GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}

		if !domain.CanAct(principal, customer.BranchID) {
			s.logger.Warn("Account opening denied",
				"customer_id", customerID,
				"principal_id", principal.ID,
				"principal_branch", principal.HomeBranchID)
			return errors.ErrForbidden
		}

		candidate := &domain.Account{
			ID:         uuid.New(),
			CustomerID: customer.ID,
			Kind:       kind,
			Balance:    decimal.Zero,
			BranchID:   customer.BranchID,
		}
		if err := store.Account().CreateAccount(ctx, candidate); err != nil {
			return err
		}
		account = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account opened successfully", "account_id", account.ID, "customer_id", account.CustomerID)
	return account, nil
}

// GetAccount returns an account the principal may act on.
func (s *AccountService) GetAccount(ctx context.Context, principal domain.Principal, accountID string) (*domain.Account, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}

	account, err := s.store.Account().GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanAct(principal, account.BranchID) {
		return nil, errors.ErrForbidden
	}
	return account, nil
}
