package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"branch-ledger/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type OpenAccountRequest struct {
	CustomerID string `json:"customerId"`
	Kind       string `json:"kind"`
	// Type is accepted as an alias for Kind.
	Type string `json:"type,omitempty"`
}

func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req OpenAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = req.Type
	}

	account, err := h.accountService.OpenAccount(r.Context(), p, &service.OpenAccountRequest{
		CustomerID: req.CustomerID,
		Kind:       kind,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}
