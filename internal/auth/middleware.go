package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/citypark/citypark/internal/platform/httpx"
	"github.com/citypark/citypark/internal/shared"
)

// Middleware resolves bearer tokens into a shared.Caller.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context otherwise.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, r, shared.ErrUnauthenticated)
			return
		}
		caller, err := m.Service.Verify(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("bearer token rejected", slog.Any("error", err))
			}
			httpx.RespondError(w, r, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
	})
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := shared.CallerFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, r, shared.ErrUnauthenticated)
				return
			}
			for _, role := range roles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, r, shared.ErrForbidden)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
