package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
	"branch-ledger/internal/storetest"
)

type LedgerTestSuite struct {
	suite.Suite
	store    *storetest.Store
	accounts *AccountService
	txs      *TransactionService

	b1, b2   domain.Branch
	customer domain.Customer // customer of b1
	teller   domain.Principal
	outsider domain.Principal // teller of b2
	admin    domain.Principal
	system   domain.Principal
}

func (s *LedgerTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	s.store = storetest.New()
	s.accounts = NewAccountService(s.store, policy, logger)
	s.txs = NewTransactionService(s.store, policy, logger)

	s.b1 = s.store.AddBranch("B1")
	s.b2 = s.store.AddBranch("B2")
	s.customer = s.store.AddCustomer(s.b1.ID)

	s.teller = domain.Principal{ID: uuid.New(), Role: domain.RoleTeller, HomeBranchID: s.b1.ID}
	s.outsider = domain.Principal{ID: uuid.New(), Role: domain.RoleTeller, HomeBranchID: s.b2.ID}
	s.admin = domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin, HomeBranchID: s.b2.ID}
	s.system = domain.SystemPrincipal(s.b1.ID)
}

func (s *LedgerTestSuite) open() *domain.Account {
	account, err := s.accounts.OpenAccount(context.Background(), s.teller, &OpenAccountRequest{
		CustomerID: s.customer.ID.String(),
		Kind:       "CHECKING",
	})
	s.Require().NoError(err)
	return account
}

func (s *LedgerTestSuite) post(p domain.Principal, accountID uuid.UUID, kind, amount string) (*PostResult, error) {
	return s.txs.PostTransaction(context.Background(), p, &PostTransactionRequest{
		AccountID: accountID.String(),
		Kind:      kind,
		Amount:    amount,
	})
}

// funded opens an account and deposits amount through the ledger.
func (s *LedgerTestSuite) funded(amount string) *domain.Account {
	account := s.open()
	_, err := s.post(s.system, account.ID, "DEPOSIT", amount)
	s.Require().NoError(err)
	return account
}

func (s *LedgerTestSuite) assertBalance(accountID uuid.UUID, want string) {
	got := s.store.Balance(accountID)
	s.True(decimal.RequireFromString(want).Equal(got), "balance: want %s, got %s", want, got)
}

func (s *LedgerTestSuite) assertInvariant(accountID uuid.UUID) {
	net := decimal.Zero
	for _, p := range s.store.Postings(accountID) {
		s.True(p.Amount.IsPositive())
		net = p.Apply(net)
	}
	s.True(net.Equal(s.store.Balance(accountID)), "balance %s != postings net %s", s.store.Balance(accountID), net)
}

// ------------------------------------------------------------------
// OpenAccount
// ------------------------------------------------------------------

func (s *LedgerTestSuite) TestOpenAccountSameBranch() {
	account := s.open()

	s.Equal(s.customer.ID, account.CustomerID)
	s.Equal(domain.AccountKindChecking, account.Kind)
	s.True(account.Balance.IsZero())
	s.Equal(1, s.store.AccountCount())
}

func (s *LedgerTestSuite) TestOpenAccountOtherBranchForbidden() {
	_, err := s.accounts.OpenAccount(context.Background(), s.outsider, &OpenAccountRequest{
		CustomerID: s.customer.ID.String(),
		Kind:       "SAVINGS",
	})

	s.ErrorIs(err, errors.ErrForbidden)
	s.Equal(0, s.store.AccountCount())
}

func (s *LedgerTestSuite) TestOpenAccountAdminAnyBranch() {
	account, err := s.accounts.OpenAccount(context.Background(), s.admin, &OpenAccountRequest{
		CustomerID: s.customer.ID.String(),
		Kind:       "SAVINGS",
	})

	s.Require().NoError(err)
	s.Equal(domain.AccountKindSavings, account.Kind)
}

func (s *LedgerTestSuite) TestOpenAccountCustomerNotFound() {
	_, err := s.accounts.OpenAccount(context.Background(), s.admin, &OpenAccountRequest{
		CustomerID: uuid.NewString(),
		Kind:       "CHECKING",
	})

	s.ErrorIs(err, errors.ErrCustomerNotFound)
}

func (s *LedgerTestSuite) TestOpenAccountValidation() {
	_, err := s.accounts.OpenAccount(context.Background(), s.teller, &OpenAccountRequest{
		CustomerID: s.customer.ID.String(),
		Kind:       "BROKERAGE",
	})
	s.ErrorIs(err, errors.ErrInvalidAccountKind)

	_, err = s.accounts.OpenAccount(context.Background(), s.teller, &OpenAccountRequest{
		CustomerID: "not-a-uuid",
		Kind:       "CHECKING",
	})
	s.ErrorIs(err, errors.ErrInvalidCustomerID)

	s.Equal(0, s.store.Transactions(), "validation must fail before the store is touched")
}

func (s *LedgerTestSuite) TestOpenAccountIsNotIdempotent() {
	first := s.open()
	second := s.open()

	s.NotEqual(first.ID, second.ID)
	s.Equal(2, s.store.AccountCount())
}

func (s *LedgerTestSuite) TestGetAccountScopedToBranch() {
	account := s.open()

	got, err := s.accounts.GetAccount(context.Background(), s.teller, account.ID.String())
	s.Require().NoError(err)
	s.Equal(s.b1.ID, got.BranchID)

	_, err = s.accounts.GetAccount(context.Background(), s.outsider, account.ID.String())
	s.ErrorIs(err, errors.ErrForbidden)

	_, err = s.accounts.GetAccount(context.Background(), s.teller, uuid.NewString())
	s.ErrorIs(err, errors.ErrAccountNotFound)
}

// ------------------------------------------------------------------
// PostTransaction
// ------------------------------------------------------------------

func (s *LedgerTestSuite) TestDepositAndWithdraw() {
	account := s.open()

	res, err := s.post(s.teller, account.ID, "DEPOSIT", "150.25")
	s.Require().NoError(err)
	s.Equal("150.25", domain.FormatMoney(res.Account.Balance))
	s.Equal(domain.PostingKindDeposit, res.Posting.Kind)
	s.Equal(s.teller.ID, res.Posting.PerformedBy)
	s.Equal(account.ID, res.Posting.AccountID)
	s.False(res.Posting.CreatedAt.IsZero())

	res, err = s.post(s.teller, account.ID, "WITHDRAWAL", "50.25")
	s.Require().NoError(err)
	s.Equal("100.00", domain.FormatMoney(res.Account.Balance))

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 2)
	s.assertInvariant(account.ID)
}

func (s *LedgerTestSuite) TestDecimalPrecision() {
	account := s.funded("0.01")

	res, err := s.post(s.teller, account.ID, "DEPOSIT", "99.99")
	s.Require().NoError(err)

	s.Equal("100.00", domain.FormatMoney(res.Account.Balance))
	s.True(res.Account.Balance.Equal(decimal.NewFromInt(100)))
}

func (s *LedgerTestSuite) TestValidationBoundary() {
	account := s.open()
	before := s.store.Transactions()

	for _, amount := range []string{"0", "-1", "abc", "", "1.001"} {
		_, err := s.post(s.teller, account.ID, "DEPOSIT", amount)
		s.ErrorIs(err, errors.ErrInvalidAmount, amount)
	}

	_, err := s.post(s.teller, account.ID, "TRANSFER", "10")
	s.ErrorIs(err, errors.ErrInvalidPostingKind)

	_, err = s.post(s.teller, account.ID, "deposit", "10")
	s.ErrorIs(err, errors.ErrInvalidPostingKind)

	_, err = s.txs.PostTransaction(context.Background(), s.teller, &PostTransactionRequest{AccountID: "42", Kind: "DEPOSIT", Amount: "10"})
	s.ErrorIs(err, errors.ErrInvalidAccountID)

	s.Equal(before, s.store.Transactions(), "validation must fail before the store is touched")

	res, err := s.post(s.teller, account.ID, "DEPOSIT", "0.01")
	s.Require().NoError(err)
	s.Equal("0.01", domain.FormatMoney(res.Account.Balance))
}

func (s *LedgerTestSuite) TestAccountNotFound() {
	_, err := s.post(s.admin, uuid.New(), "DEPOSIT", "10")
	s.ErrorIs(err, errors.ErrAccountNotFound)
}

func (s *LedgerTestSuite) TestBranchIsolation() {
	account := s.funded("100")

	_, err := s.post(s.outsider, account.ID, "DEPOSIT", "10")
	s.ErrorIs(err, errors.ErrForbidden)

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 1)
}

func (s *LedgerTestSuite) TestForbiddenBeforeInsufficientFunds() {
	account := s.funded("10")

	_, err := s.post(s.outsider, account.ID, "WITHDRAWAL", "1000")
	s.ErrorIs(err, errors.ErrForbidden, "a denied caller must not learn about funds")
}

func (s *LedgerTestSuite) TestManagerIsBranchScoped() {
	account := s.funded("10")
	manager := domain.Principal{ID: uuid.New(), Role: domain.RoleManager, HomeBranchID: s.b2.ID}

	_, err := s.post(manager, account.ID, "DEPOSIT", "1")
	s.ErrorIs(err, errors.ErrForbidden)
}

func (s *LedgerTestSuite) TestAdminBypassesBranch() {
	account := s.funded("10")

	res, err := s.post(s.admin, account.ID, "DEPOSIT", "5")
	s.Require().NoError(err)
	s.Equal("15.00", domain.FormatMoney(res.Account.Balance))
	s.Equal(s.admin.ID, res.Posting.PerformedBy)
}

func (s *LedgerTestSuite) TestInsufficientFunds() {
	account := s.funded("100")

	_, err := s.post(s.teller, account.ID, "WITHDRAWAL", "100.01")
	s.ErrorIs(err, errors.ErrInsufficientFunds)
	s.assertBalance(account.ID, "100")

	res, err := s.post(s.teller, account.ID, "WITHDRAWAL", "100")
	s.Require().NoError(err)
	s.True(res.Account.Balance.IsZero())
	s.assertInvariant(account.ID)
}

func (s *LedgerTestSuite) TestBalanceCeiling() {
	account := s.store.AddAccount(s.customer.ID, "9999999999999990.00")

	_, err := s.post(s.teller, account.ID, "DEPOSIT", "10.00")
	s.ErrorIs(err, errors.ErrBalanceLimit)
	s.Equal(errors.ValidationError, errors.AsAppError(err).Code)
	s.assertBalance(account.ID, "9999999999999990.00")
	s.Empty(s.store.Postings(account.ID))

	res, err := s.post(s.teller, account.ID, "DEPOSIT", "9.99")
	s.Require().NoError(err)
	s.Equal("9999999999999999.99", domain.FormatMoney(res.Account.Balance))
}

func (s *LedgerTestSuite) TestBusinessErrorsAreNotRetried() {
	account := s.funded("1")
	before := s.store.Transactions()

	_, err := s.post(s.teller, account.ID, "WITHDRAWAL", "2")
	s.ErrorIs(err, errors.ErrInsufficientFunds)
	s.Equal(before+1, s.store.Transactions())
}

func (s *LedgerTestSuite) TestConcurrentWithdrawalsRace() {
	account := s.funded("100")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.post(s.teller, account.ID, "WITHDRAWAL", "60")
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(s.T(), err, errors.ErrInsufficientFunds):
			insufficient++
		}
	}
	s.Equal(1, succeeded)
	s.Equal(1, insufficient)
	s.assertBalance(account.ID, "40")
	s.Len(s.store.Postings(account.ID), 2) // funding deposit + one withdrawal
	s.assertInvariant(account.ID)
}

func (s *LedgerTestSuite) TestConcurrentPostingsKeepInvariant() {
	account := s.funded("500")
	other := s.funded("500")

	rng := rand.New(rand.NewSource(7))
	type job struct {
		account uuid.UUID
		kind    string
		amount  string
	}
	jobs := make([]job, 64)
	for i := range jobs {
		kind := "DEPOSIT"
		if rng.Intn(2) == 0 {
			kind = "WITHDRAWAL"
		}
		target := account.ID
		if i%4 == 0 {
			target = other.ID
		}
		jobs[i] = job{target, kind, fmt.Sprintf("%d.%02d", rng.Intn(200), rng.Intn(99)+1)}
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			_, err := s.post(s.teller, j.account, j.kind, j.amount)
			if err != nil {
				assert.ErrorIs(s.T(), err, errors.ErrInsufficientFunds)
			}
		}(j)
	}
	wg.Wait()

	for _, id := range []uuid.UUID{account.ID, other.ID} {
		s.False(s.store.Balance(id).IsNegative())
		s.assertInvariant(id)
	}
}

func (s *LedgerTestSuite) TestAtomicityWhenPostingInsertFails() {
	account := s.funded("100")
	s.store.FailOn(storetest.OpCreatePosting, errors.NewAppError(errors.InternalError, "disk full"), 1)

	_, err := s.post(s.teller, account.ID, "WITHDRAWAL", "30")
	s.Require().Error(err)
	s.Equal(errors.InternalError, errors.AsAppError(err).Code)

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 1)
	s.assertInvariant(account.ID)
}

func (s *LedgerTestSuite) TestAtomicityWhenBalanceWriteFails() {
	account := s.funded("100")
	s.store.FailOn(storetest.OpUpdateBalance, errors.NewAppError(errors.InternalError, "connection reset"), 1)

	_, err := s.post(s.teller, account.ID, "DEPOSIT", "30")
	s.Require().Error(err)

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 1)
}

func (s *LedgerTestSuite) TestAtomicityWhenCommitFails() {
	account := s.funded("100")
	s.store.FailOn(storetest.OpCommit, errors.NewAppError(errors.InternalError, "commit failed"), 1)

	_, err := s.post(s.teller, account.ID, "DEPOSIT", "30")
	s.Require().Error(err)

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 1)
}

func (s *LedgerTestSuite) TestSerializationConflictIsRetried() {
	account := s.funded("100")
	before := s.store.Transactions()
	s.store.FailOn(storetest.OpCommit, errors.ErrSerializationFailure, 2)

	res, err := s.post(s.teller, account.ID, "WITHDRAWAL", "25")
	s.Require().NoError(err)
	s.Equal("75.00", domain.FormatMoney(res.Account.Balance))
	s.Equal(before+3, s.store.Transactions())
	s.Len(s.store.Postings(account.ID), 2)
	s.assertInvariant(account.ID)
}

func (s *LedgerTestSuite) TestSerializationRetriesExhausted() {
	account := s.funded("100")
	s.store.FailOn(storetest.OpCommit, errors.ErrSerializationFailure, -1)

	_, err := s.post(s.teller, account.ID, "DEPOSIT", "1")
	s.ErrorIs(err, errors.ErrTransientFailure)
	s.NotErrorIs(err, errors.ErrSerializationFailure)

	s.assertBalance(account.ID, "100")
	s.Len(s.store.Postings(account.ID), 1)
}

func (s *LedgerTestSuite) TestCancelledContextLeavesNoTrace() {
	account := s.funded("100")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.txs.PostTransaction(ctx, s.teller, &PostTransactionRequest{
		AccountID: account.ID.String(),
		Kind:      "DEPOSIT",
		Amount:    "10",
	})
	s.ErrorIs(err, errors.ErrTransientFailure)
	s.assertBalance(account.ID, "100")
}

// ------------------------------------------------------------------
// Reads
// ------------------------------------------------------------------

func (s *LedgerTestSuite) TestListAccountPostingsNewestFirst() {
	account := s.funded("10")
	_, err := s.post(s.teller, account.ID, "DEPOSIT", "20")
	s.Require().NoError(err)
	_, err = s.post(s.teller, account.ID, "WITHDRAWAL", "5")
	s.Require().NoError(err)

	postings, err := s.txs.ListAccountPostings(context.Background(), s.teller, account.ID.String(), 0)
	s.Require().NoError(err)
	s.Require().Len(postings, 3)
	s.Equal(domain.PostingKindWithdrawal, postings[0].Kind)
	s.Equal("10.00", domain.FormatMoney(postings[2].Amount))

	limited, err := s.txs.ListAccountPostings(context.Background(), s.teller, account.ID.String(), 2)
	s.Require().NoError(err)
	s.Len(limited, 2)

	_, err = s.txs.ListAccountPostings(context.Background(), s.outsider, account.ID.String(), 0)
	s.ErrorIs(err, errors.ErrForbidden)
}

func (s *LedgerTestSuite) TestListBranchPostings() {
	mine := s.funded("10")
	theirs := s.store.AddCustomer(s.b2.ID)
	theirAccount, err := s.accounts.OpenAccount(context.Background(), s.outsider, &OpenAccountRequest{
		CustomerID: theirs.ID.String(),
		Kind:       "SAVINGS",
	})
	s.Require().NoError(err)
	_, err = s.post(s.outsider, theirAccount.ID, "DEPOSIT", "99")
	s.Require().NoError(err)

	postings, err := s.txs.ListBranchPostings(context.Background(), s.teller, uuid.Nil)
	s.Require().NoError(err)
	s.Require().Len(postings, 1)
	s.Equal(mine.ID, postings[0].AccountID)

	_, err = s.txs.ListBranchPostings(context.Background(), s.teller, s.b2.ID)
	s.ErrorIs(err, errors.ErrForbidden)

	postings, err = s.txs.ListBranchPostings(context.Background(), s.admin, s.b2.ID)
	s.Require().NoError(err)
	s.Len(postings, 1)
}

func (s *LedgerTestSuite) TestReconcileAccount() {
	account := s.funded("42.42")
	_, err := s.post(s.teller, account.ID, "WITHDRAWAL", "2.42")
	s.Require().NoError(err)

	rec, err := s.txs.ReconcileAccount(context.Background(), s.system, account.ID.String())
	s.Require().NoError(err)
	s.True(rec.Consistent())
	s.Equal("40.00", domain.FormatMoney(rec.Balance))

	// a balance written outside the ledger is reported
	drifted := s.store.AddAccount(s.customer.ID, "5")
	rec, err = s.txs.ReconcileAccount(context.Background(), s.system, drifted.ID.String())
	s.Require().NoError(err)
	s.False(rec.Consistent())
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	require.Equal(t, DefaultRetryPolicy(), p)

	p = RetryPolicy{MaxAttempts: 2, InitialInterval: time.Second, MaxInterval: time.Millisecond}.withDefaults()
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, time.Second, p.MaxInterval)
}
