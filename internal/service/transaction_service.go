package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

const (
	DefaultAccountHistoryLimit = 50
	BranchFeedLimit            = 100
)

type TransactionService struct {
	tx     *txRunner
	logger *slog.Logger
}

func NewTransactionService(store domain.Store, policy RetryPolicy, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		tx:     newTxRunner(store, policy, logger),
		logger: logger,
	}
}

type PostTransactionRequest struct {
	AccountID string
	Kind      string
	// Amount is a decimal literal, e.g. "99.99".
	Amount string
}

type PostResult struct {
	Account *domain.Account
	Posting *domain.Posting
}

// PostTransaction applies a deposit or withdrawal to an account and appends
// the matching posting as one serializable unit of work.
//
// Amount and kind are validated before the store is touched. Inside the
// transaction the account and its branch are re-read and locked, then
// checked for existence, authorization and funds in that order. A
// serialization conflict re-runs the whole unit; exhausting the retries
// yields errors.ErrTransientFailure.
func (s *TransactionService) PostTransaction(ctx context.Context, principal domain.Principal, req *PostTransactionRequest) (*PostResult, error) {
	s.logger.Info("Processing posting",
		"account_id", req.AccountID,
		"kind", req.Kind,
		"amount", req.Amount,
		"principal_id", principal.ID)

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, errors.ErrInvalidAmount.WithDetails(err.Error())
	}

	kind := domain.PostingKind(req.Kind)
	if !kind.Valid() {
		return nil, errors.ErrInvalidPostingKind
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}

	var result *PostResult
	err = s.tx.serializable(ctx, "post_transaction", func(store domain.Store) error {
		account, err := store.Account().GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if !domain.CanAct(principal, account.BranchID) {
			s.logger.Warn("Posting denied",
				"account_id", accountID,
				"principal_id", principal.ID,
				"principal_branch", principal.HomeBranchID)
			return errors.ErrForbidden
		}

		if kind == domain.PostingKindWithdrawal && account.Balance.LessThan(amount) {
			return errors.ErrInsufficientFunds
		}

		posting := &domain.Posting{
			ID:          uuid.New(),
			AccountID:   account.ID,
			Kind:        kind,
			Amount:      amount,
			PerformedBy: principal.ID,
		}
		newBalance := posting.Apply(account.Balance)
		if newBalance.GreaterThan(domain.MaxBalance) {
			return errors.ErrBalanceLimit
		}

		if err := store.Account().UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
			return err
		}
		if err := store.Posting().CreatePosting(ctx, posting); err != nil {
			return err
		}

		account.Balance = newBalance
		result = &PostResult{Account: account, Posting: posting}
		return nil
	})
	if err != nil {
		s.logger.Warn("Posting failed", "account_id", accountID, "kind", kind, "error", err)
		return nil, err
	}

	s.logger.Info("Posting applied",
		"posting_id", result.Posting.ID,
		"account_id", accountID,
		"new_balance", domain.FormatMoney(result.Account.Balance))
	return result, nil
}

// ListAccountPostings returns the newest postings of an account, at most limit
// (DefaultAccountHistoryLimit when limit is out of range).
func (s *TransactionService) ListAccountPostings(ctx context.Context, principal domain.Principal, accountID string, limit int) ([]*domain.Posting, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}
	if limit <= 0 || limit > DefaultAccountHistoryLimit {
		limit = DefaultAccountHistoryLimit
	}

	var postings []*domain.Posting
	err = s.tx.snapshot(ctx, func(store domain.Store) error {
		account, err := store.Account().GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanAct(principal, account.BranchID) {
			return errors.ErrForbidden
		}
		postings, err = store.Posting().ListByAccount(ctx, id, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return postings, nil
}

// ListBranchPostings returns the newest postings on accounts of a branch's
// customers. branchID defaults to the principal's home branch.
func (s *TransactionService) ListBranchPostings(ctx context.Context, principal domain.Principal, branchID uuid.UUID) ([]*domain.Posting, error) {
	if branchID == uuid.Nil {
		branchID = principal.HomeBranchID
	}
	if !domain.CanAct(principal, branchID) {
		return nil, errors.ErrForbidden
	}

	var postings []*domain.Posting
	err := s.tx.snapshot(ctx, func(store domain.Store) error {
		var err error
		postings, err = store.Posting().ListByBranch(ctx, branchID, BranchFeedLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return postings, nil
}

type Reconciliation struct {
	AccountID  uuid.UUID
	Balance    decimal.Decimal
	PostingNet decimal.Decimal
}

// Consistent reports whether the stored balance equals the net of its postings.
func (r *Reconciliation) Consistent() bool {
	return r.Balance.Equal(r.PostingNet)
}

// ReconcileAccount compares an account's stored balance with the net of its
// postings, both read from one snapshot.
func (s *TransactionService) ReconcileAccount(ctx context.Context, principal domain.Principal, accountID string) (*Reconciliation, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID
	}

	rec := &Reconciliation{AccountID: id}
	err = s.tx.snapshot(ctx, func(store domain.Store) error {
		account, err := store.Account().GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanAct(principal, account.BranchID) {
			return errors.ErrForbidden
		}
		rec.Balance = account.Balance
		rec.PostingNet, err = store.Posting().NetByAccount(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !rec.Consistent() {
		s.logger.Error("Ledger mismatch",
			"account_id", id,
			"balance", domain.FormatMoney(rec.Balance),
			"postings_net", domain.FormatMoney(rec.PostingNet))
	}
	return rec, nil
}
