package handler

import (
	"log/slog"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the ledger API on router. Every route requires a
// principal.
func RegisterRoutes(router *mux.Router, accounts *AccountHandler, transactions *TransactionHandler, logger *slog.Logger) {
	api := router.NewRoute().Subrouter()
	api.Use(PrincipalMiddleware(logger))

	// Account routes
	api.HandleFunc("/accounts", accounts.OpenAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", accounts.GetAccount).Methods("GET")

	// Transaction routes
	api.HandleFunc("/accounts/{id}/transaction", transactions.PostTransaction).Methods("POST")
	api.HandleFunc("/accounts/{id}/transactions", transactions.ListAccountPostings).Methods("GET")
	api.HandleFunc("/accounts/{id}/reconciliation", transactions.ReconcileAccount).Methods("GET")
	api.HandleFunc("/transactions", transactions.ListBranchPostings).Methods("GET")
}
