package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.Caller, error)
}

// AuthMiddleware puts request caller to context or rejects request
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through callers with one of roles
// Has to be used after AuthMiddleware
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := userctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !caller.HasRole(roles...) {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
