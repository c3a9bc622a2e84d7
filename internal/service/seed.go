package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"branch-ledger/internal/domain"
)

type seedCustomer struct {
	name, email, phone string
	branch             string
	// opening deposits per account kind, empty for none
	checking, savings string
}

var seedCustomers = []seedCustomer{
	{"Israel Israeli", "israel@example.com", "050-1234567", "DEFAULT", "2500.00", "12000.00"},
	{"Sara Cohen", "sara@example.com", "052-7654321", "DEFAULT", "1800.50", "7400.00"},
	{"David Levi", "david@example.com", "054-1112222", "DEFAULT", "3999.99", ""},
	{"Rachel Aharoni", "rachel@example.com", "053-3334444", "DEFAULT", "1000.00", "5000.00"},
	{"Yossi Mizrahi", "yossi@westside.com", "055-5555555", "WEST", "4200.00", ""},
	{"Michal Sasson", "michal@westside.com", "058-8888888", "WEST", "650.75", ""},
}

type SeedReport struct {
	Branches  map[string]uuid.UUID // by code
	Customers int
	Accounts  int
	Postings  int
}

// Seeder loads demo branches, staff and customers. Opening balances are
// posted through the ledger as the SYSTEM principal so they are backed by
// postings like any other balance.
type Seeder struct {
	store    domain.Store
	accounts *AccountService
	txs      *TransactionService
	logger   *slog.Logger
}

func NewSeeder(store domain.Store, accounts *AccountService, txs *TransactionService, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:    store,
		accounts: accounts,
		txs:      txs,
		logger:   logger,
	}
}

func (s *Seeder) Seed(ctx context.Context) (*SeedReport, error) {
	report := &SeedReport{Branches: make(map[string]uuid.UUID)}

	branches := map[string]*domain.Branch{
		"DEFAULT": {ID: uuid.New(), Code: "DEFAULT", Name: "Main Branch"},
		"WEST":    {ID: uuid.New(), Code: "WEST", Name: "West Branch"},
	}
	for _, code := range []string{"DEFAULT", "WEST"} {
		if err := s.store.Directory().UpsertBranch(ctx, branches[code]); err != nil {
			return nil, fmt.Errorf("seeding branch %s: %w", code, err)
		}
		report.Branches[code] = branches[code].ID
	}
	hq := branches["DEFAULT"].ID

	staff := []*domain.User{
		{ID: domain.SystemUserID, Email: "system@banker.internal", Name: "SYSTEM", Role: domain.RoleSystem, BranchID: hq},
		{ID: uuid.New(), Email: "admin@bank.com", Name: "System Manager", Role: domain.RoleManager, BranchID: hq},
	}
	for _, u := range staff {
		if err := s.store.Directory().UpsertUser(ctx, u); err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", u.Email, err)
		}
	}
	system := domain.SystemPrincipal(hq)

	for _, sc := range seedCustomers {
		customer := &domain.Customer{
			ID:       uuid.New(),
			Name:     sc.name,
			Email:    sc.email,
			Phone:    sc.phone,
			BranchID: branches[sc.branch].ID,
		}
		if err := s.store.Customer().CreateCustomer(ctx, customer); err != nil {
			return nil, fmt.Errorf("seeding customer %s: %w", sc.email, err)
		}
		report.Customers++

		for kind, opening := range map[domain.AccountKind]string{
			domain.AccountKindChecking: sc.checking,
			domain.AccountKindSavings:  sc.savings,
		} {
			if kind == domain.AccountKindSavings && opening == "" {
				continue
			}
			account, err := s.accounts.OpenAccount(ctx, system, &OpenAccountRequest{
				CustomerID: customer.ID.String(),
				Kind:       string(kind),
			})
			if err != nil {
				return nil, fmt.Errorf("opening %s account for %s: %w", kind, sc.email, err)
			}
			report.Accounts++

			if opening == "" {
				continue
			}
			if _, err := s.txs.PostTransaction(ctx, system, &PostTransactionRequest{
				AccountID: account.ID.String(),
				Kind:      string(domain.PostingKindDeposit),
				Amount:    opening,
			}); err != nil {
				return nil, fmt.Errorf("opening deposit for %s: %w", sc.email, err)
			}
			report.Postings++
		}
	}

	s.logger.Info("Seed completed",
		"branches", len(report.Branches),
		"customers", report.Customers,
		"accounts", report.Accounts,
		"postings", report.Postings)
	return report, nil
}
