package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
	"branch-ledger/internal/service"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type AccountResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Balance    string `json:"balance"`
	CustomerID string `json:"customerId"`
}

type PostingResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	AccountID   string `json:"accountId"`
	PerformedBy string `json:"performedBy"`
	Timestamp   string `json:"timestamp"`
}

type PostTransactionResponse struct {
	Account AccountResponse `json:"account"`
	Posting PostingResponse `json:"posting"`
}

type ReconciliationResponse struct {
	AccountID  string `json:"accountId"`
	Balance    string `json:"balance"`
	PostingNet string `json:"postingNet"`
	Consistent bool   `json:"consistent"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID.String(),
		Kind:       string(a.Kind),
		Balance:    domain.FormatMoney(a.Balance),
		CustomerID: a.CustomerID.String(),
	}
}

func toPostingResponse(p *domain.Posting) PostingResponse {
	return PostingResponse{
		ID:          p.ID.String(),
		Amount:      domain.FormatMoney(p.Amount),
		Kind:        string(p.Kind),
		AccountID:   p.AccountID.String(),
		PerformedBy: p.PerformedBy.String(),
		Timestamp:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toPostingResponses(postings []*domain.Posting) []PostingResponse {
	out := make([]PostingResponse, 0, len(postings))
	for _, p := range postings {
		out = append(out, toPostingResponse(p))
	}
	return out
}

func toReconciliationResponse(r *service.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		AccountID:  r.AccountID.String(),
		Balance:    domain.FormatMoney(r.Balance),
		PostingNet: domain.FormatMoney(r.PostingNet),
		Consistent: r.Consistent(),
	}
}

// MaxRequestBody caps the size of a JSON request body.
const MaxRequestBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.ErrRequestTooLarge
		}
		return errors.NewAppError(errors.ValidationError, "invalid request body").WithDetails(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

// writeError renders any error as the error envelope. Errors that are not
// AppErrors become internal_error, and internal errors never expose details.
func writeError(w http.ResponseWriter, err error) {
	appErr := errors.AsAppError(err)
	w.Header().Set("Content-Type", "application/json")

	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Code == errors.InternalError {
		errResponse.Details = ""
	}

	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}
