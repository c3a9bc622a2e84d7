package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"branch-ledger/internal/errors"
	"branch-ledger/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// AmountLiteral keeps the amount exactly as written, whether it was sent as
// a JSON string or a JSON number, so it never passes through float64.
type AmountLiteral string

func (a *AmountLiteral) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountLiteral(s)
	default:
		*a = AmountLiteral(b)
	}
	return nil
}

type PostTransactionRequest struct {
	Kind   string        `json:"kind"`
	Type   string        `json:"type,omitempty"`
	Amount AmountLiteral `json:"amount"`
}

func (h *TransactionHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req PostTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = req.Type
	}

	result, err := h.transactionService.PostTransaction(r.Context(), p, &service.PostTransactionRequest{
		AccountID: mux.Vars(r)["id"],
		Kind:      kind,
		Amount:    string(req.Amount),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PostTransactionResponse{
		Account: toAccountResponse(result.Account),
		Posting: toPostingResponse(result.Posting),
	})
}

func (h *TransactionHandler) ListAccountPostings(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, errors.NewAppError(errors.ValidationError, "limit must be a positive integer"))
			return
		}
	}

	postings, err := h.transactionService.ListAccountPostings(r.Context(), p, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostingResponses(postings))
}

func (h *TransactionHandler) ListBranchPostings(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var branchID uuid.UUID
	if raw := r.URL.Query().Get("branchId"); raw != "" {
		branchID, err = uuid.Parse(raw)
		if err != nil {
			writeError(w, errors.NewAppError(errors.ValidationError, "invalid branch id"))
			return
		}
	}

	postings, err := h.transactionService.ListBranchPostings(r.Context(), p, branchID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostingResponses(postings))
}

func (h *TransactionHandler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.transactionService.ReconcileAccount(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReconciliationResponse(rec))
}
