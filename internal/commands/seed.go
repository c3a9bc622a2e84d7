package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"branch-ledger/internal/repository"
	"branch-ledger/internal/server"
	"branch-ledger/internal/service"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo branches, staff, customers and opening balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := server.NewLogger(cfg)

			db, err := server.PrepareDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			store := repository.NewStore(db, logger)
			policy := server.RetryPolicy(cfg)
			accounts := service.NewAccountService(store, policy, logger)
			txs := service.NewTransactionService(store, policy, logger)

			report, err := service.NewSeeder(store, accounts, txs, logger).Seed(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for code, id := range report.Branches {
				fmt.Fprintf(out, "branch %-8s %s\n", code, id)
			}
			fmt.Fprintf(out, "seeded %d customers, %d accounts, %d postings\n",
				report.Customers, report.Accounts, report.Postings)
			return nil
		},
	}
}
