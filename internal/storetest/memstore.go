// Package storetest provides an in-memory domain.Store for unit tests.
//
// Transactions hold a single store-wide lock for their whole duration and
// work on a private copy of the data that replaces the committed state only
// when the callback succeeds, so every transaction is serializable and a
// failed one leaves no trace. Faults can be injected per operation.
package storetest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

// Op names a store operation that can be made to fail.
type Op string

const (
	OpCreateAccount  Op = "CreateAccount"
	OpGetAccount     Op = "GetAccount"
	OpUpdateBalance  Op = "UpdateAccountBalance"
	OpCreatePosting  Op = "CreatePosting"
	OpGetCustomer    Op = "GetCustomer"
	OpCommit         Op = "Commit"
	OpBeginTx        Op = "BeginTx"
	OpListPostings   Op = "ListPostings"
	OpCreateCustomer Op = "CreateCustomer"
)

type state struct {
	branches  map[uuid.UUID]domain.Branch
	users     map[uuid.UUID]domain.User
	customers map[uuid.UUID]domain.Customer
	accounts  map[uuid.UUID]domain.Account
	postings  []domain.Posting
}

func newState() *state {
	return &state{
		branches:  make(map[uuid.UUID]domain.Branch),
		users:     make(map[uuid.UUID]domain.User),
		customers: make(map[uuid.UUID]domain.Customer),
		accounts:  make(map[uuid.UUID]domain.Account),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.branches {
		cp.branches[k] = v
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.customers {
		cp.customers[k] = v
	}
	for k, v := range s.accounts {
		cp.accounts[k] = v
	}
	cp.postings = append([]domain.Posting(nil), s.postings...)
	return cp
}

type fault struct {
	err   error
	times int // <0 means always
}

// Store is an in-memory domain.Store.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[Op]*fault
	faultM sync.Mutex
	txs    int
	now    func() time.Time
}

func New() *Store {
	return &Store{
		state:  newState(),
		faults: make(map[Op]*fault),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.Store = (*Store)(nil)

// FailOn makes the next times calls of op return err. times < 0 fails forever.
func (s *Store) FailOn(op Op, err error, times int) {
	s.faultM.Lock()
	defer s.faultM.Unlock()
	s.faults[op] = &fault{err: err, times: times}
}

// Transactions returns how many transactions have been started.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

func (s *Store) fault(op Op) error {
	s.faultM.Lock()
	defer s.faultM.Unlock()
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.times == 0 {
		delete(s.faults, op)
		return nil
	}
	if f.times > 0 {
		f.times--
	}
	return f.err
}

func (s *Store) root() *view {
	return &view{store: s}
}

func (s *Store) Account() domain.AccountRepository     { return s.root() }
func (s *Store) Posting() domain.PostingRepository     { return s.root() }
func (s *Store) Customer() domain.CustomerRepository   { return s.root() }
func (s *Store) Directory() domain.DirectoryRepository { return s.root() }

func (s *Store) WithTransaction(ctx context.Context, _ sql.IsolationLevel, fn func(domain.Store) error) error {
	if err := s.fault(OpBeginTx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs++

	if err := ctx.Err(); err != nil {
		return errors.ErrTransientFailure.WithDetails(err.Error())
	}

	tx := &view{store: s, st: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.ErrTransientFailure.WithDetails(err.Error())
	}
	if err := s.fault(OpCommit); err != nil {
		return err
	}

	s.state = tx.st
	return nil
}

// Seed helpers write committed state directly.

func (s *Store) AddBranch(code string) domain.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := domain.Branch{ID: uuid.New(), Code: code, Name: code}
	s.state.branches[b.ID] = b
	return b
}

func (s *Store) AddCustomer(branchID uuid.UUID) domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Customer{ID: uuid.New(), Name: "Customer", Email: "c@example.com", Phone: "050-0000000", BranchID: branchID, CreatedAt: s.now()}
	s.state.customers[c.ID] = c
	return c
}

// AddAccount creates an account holding balance without recording postings.
// Tests that check the posting invariant should fund accounts through the
// ledger instead.
func (s *Store) AddAccount(customerID uuid.UUID, balance string) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	a := domain.Account{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       domain.AccountKindChecking,
		Balance:    decimal.RequireFromString(balance),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.state.accounts[a.ID] = a
	return a
}

// Balance returns the committed balance of an account.
func (s *Store) Balance(accountID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.accounts[accountID].Balance
}

// Postings returns the committed postings of an account in insertion order.
func (s *Store) Postings(accountID uuid.UUID) []domain.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Posting
	for _, p := range s.state.postings {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out
}

// AccountCount returns the number of committed accounts.
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.accounts)
}

// view implements the repositories over either the committed state (root
// view, locking per call) or a transaction's private copy.
type view struct {
	store *Store
	st    *state
}

func (v *view) with(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v *view) Account() domain.AccountRepository     { return v }
func (v *view) Posting() domain.PostingRepository     { return v }
func (v *view) Customer() domain.CustomerRepository   { return v }
func (v *view) Directory() domain.DirectoryRepository { return v }

func (v *view) WithTransaction(ctx context.Context, iso sql.IsolationLevel, fn func(domain.Store) error) error {
	if v.st != nil {
		return errors.ErrCannotBeginTransaction
	}
	return v.store.WithTransaction(ctx, iso, fn)
}

func (v *view) CreateAccount(_ context.Context, account *domain.Account) error {
	if err := v.store.fault(OpCreateAccount); err != nil {
		return err
	}
	return v.with(func(st *state) error {
		if _, ok := st.customers[account.CustomerID]; !ok {
			return errors.NewAppError(errors.InternalError, "failed to create account").WithDetails("customer missing")
		}
		now := v.store.now()
		account.CreatedAt, account.UpdatedAt = now, now
		st.accounts[account.ID] = *account
		return nil
	})
}

func (v *view) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := v.store.fault(OpGetAccount); err != nil {
		return nil, err
	}
	var out *domain.Account
	err := v.with(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return errors.ErrAccountNotFound
		}
		a.BranchID = st.customers[a.CustomerID].BranchID
		out = &a
		return nil
	})
	return out, err
}

func (v *view) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return v.GetAccount(ctx, id)
}

func (v *view) UpdateAccountBalance(_ context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	if err := v.store.fault(OpUpdateBalance); err != nil {
		return err
	}
	return v.with(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return errors.ErrAccountNotFound
		}
		if newBalance.IsNegative() {
			return errors.ErrInsufficientFunds.WithDetails("accounts_balance_non_negative")
		}
		a.Balance = newBalance
		a.UpdatedAt = v.store.now()
		st.accounts[id] = a
		return nil
	})
}

func (v *view) CreatePosting(_ context.Context, posting *domain.Posting) error {
	if err := v.store.fault(OpCreatePosting); err != nil {
		return err
	}
	return v.with(func(st *state) error {
		if _, ok := st.accounts[posting.AccountID]; !ok {
			return errors.NewAppError(errors.InternalError, "failed to create posting").WithDetails("account missing")
		}
		posting.CreatedAt = v.store.now()
		st.postings = append(st.postings, *posting)
		return nil
	})
}

func (v *view) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]*domain.Posting, error) {
	return v.list(func(st *state, p domain.Posting) bool { return p.AccountID == accountID }, limit)
}

func (v *view) ListByBranch(_ context.Context, branchID uuid.UUID, limit int) ([]*domain.Posting, error) {
	return v.list(func(st *state, p domain.Posting) bool {
		a := st.accounts[p.AccountID]
		return st.customers[a.CustomerID].BranchID == branchID
	}, limit)
}

func (v *view) list(match func(*state, domain.Posting) bool, limit int) ([]*domain.Posting, error) {
	if err := v.store.fault(OpListPostings); err != nil {
		return nil, err
	}
	out := make([]*domain.Posting, 0)
	err := v.with(func(st *state) error {
		// postings are appended in commit order, so walking backwards is newest first
		for i := len(st.postings) - 1; i >= 0; i-- {
			if limit > 0 && len(out) == limit {
				break
			}
			if match(st, st.postings[i]) {
				p := st.postings[i]
				out = append(out, &p)
			}
		}
		return nil
	})
	return out, err
}

func (v *view) NetByAccount(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	net := decimal.Zero
	err := v.with(func(st *state) error {
		for _, p := range st.postings {
			if p.AccountID == accountID {
				net = p.Apply(net)
			}
		}
		return nil
	})
	return net, err
}

func (v *view) CreateCustomer(_ context.Context, customer *domain.Customer) error {
	if err := v.store.fault(OpCreateCustomer); err != nil {
		return err
	}
	return v.with(func(st *state) error {
		customer.CreatedAt = v.store.now()
		st.customers[customer.ID] = *customer
		return nil
	})
}

func (v *view) GetCustomer(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	if err := v.store.fault(OpGetCustomer); err != nil {
		return nil, err
	}
	var out *domain.Customer
	err := v.with(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return errors.ErrCustomerNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (v *view) UpsertBranch(_ context.Context, branch *domain.Branch) error {
	return v.with(func(st *state) error {
		for _, b := range st.branches {
			if b.Code == branch.Code {
				branch.ID = b.ID
				b.Name = branch.Name
				st.branches[b.ID] = b
				return nil
			}
		}
		st.branches[branch.ID] = *branch
		return nil
	})
}

func (v *view) UpsertUser(_ context.Context, user *domain.User) error {
	return v.with(func(st *state) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				user.ID = u.ID
				return nil
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}
