package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

// Headers set by the authenticating gateway in front of the service.
const (
	HeaderPrincipalID     = "X-Principal-Id"
	HeaderPrincipalRole   = "X-Principal-Role"
	HeaderPrincipalBranch = "X-Principal-Branch"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// PrincipalMiddleware rejects requests without a well-formed principal with
// 401. The branch header may be omitted only by elevated roles.
func PrincipalMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := principalFromHeaders(r.Header)
			if err != nil {
				logger.Warn("Rejected request without valid principal",
					"method", r.Method,
					"path", r.URL.Path,
					"reason", err.Error())
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func principalFromHeaders(h http.Header) (domain.Principal, error) {
	var p domain.Principal

	id, err := uuid.Parse(strings.TrimSpace(h.Get(HeaderPrincipalID)))
	if err != nil {
		return p, errors.ErrUnauthenticated.WithDetails("invalid " + HeaderPrincipalID)
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(h.Get(HeaderPrincipalRole))))
	if !role.Valid() {
		return p, errors.ErrUnauthenticated.WithDetails("invalid " + HeaderPrincipalRole)
	}

	var branch uuid.UUID
	if raw := strings.TrimSpace(h.Get(HeaderPrincipalBranch)); raw != "" {
		branch, err = uuid.Parse(raw)
		if err != nil {
			return p, errors.ErrUnauthenticated.WithDetails("invalid " + HeaderPrincipalBranch)
		}
	} else if !role.Elevated() {
		return p, errors.ErrUnauthenticated.WithDetails("missing " + HeaderPrincipalBranch)
	}

	return domain.Principal{ID: id, Role: role, HomeBranchID: branch}, nil
}

// principal returns the caller set by PrincipalMiddleware.
func principal(r *http.Request) (domain.Principal, error) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		return p, errors.ErrUnauthenticated
	}
	return p, nil
}
