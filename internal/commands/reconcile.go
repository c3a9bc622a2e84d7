package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/repository"
	"branch-ledger/internal/server"
	"branch-ledger/internal/service"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <accountId>",
		Short: "Compare an account's balance with the net of its postings",
		Args:  cobra.ExactArgs(1),
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

			txs := service.NewTransactionService(repository.NewStore(db, logger), server.RetryPolicy(cfg), logger)
			rec, err := txs.ReconcileAccount(cmd.Context(), domain.SystemPrincipal(uuid.Nil), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account     %s\n", rec.AccountID)
			fmt.Fprintf(out, "balance     %s\n", domain.FormatMoney(rec.Balance))
			fmt.Fprintf(out, "posting net %s\n", domain.FormatMoney(rec.PostingNet))
			if !rec.Consistent() {
				return fmt.Errorf("account %s is out of balance by %s",
					rec.AccountID, domain.FormatMoney(rec.Balance.Sub(rec.PostingNet)))
			}
			fmt.Fprintln(out, "consistent")
			return nil
		},
	}
}
