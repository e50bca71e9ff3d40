package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/models"
)

// Allow to use a function as auth service
type authFunc func(ctx context.Context, r *http.Request) (models.Caller, error)

func (f authFunc) Auth(ctx context.Context, r *http.Request) (models.Caller, error) {
	return f(ctx, r)
}

func TestAuthMiddleware_Auth(t *testing.T) {
	// Simple handler that try to get caller from context
	// If ok write its role to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set caller or write error to response
		caller, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(caller.Role))
		require.NoError(t, err, "should write role to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		// Middleware that always return ok
		middleware := AuthMiddleware(authFunc(func(ctx context.Context, r *http.Request) (models.Caller, error) {
			return models.Caller{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleHR}, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "hr", string(body), "should return role in response")
	})

	t.Run("auth fail", func(t *testing.T) {
		// Middleware that always fails
		middleware := AuthMiddleware(authFunc(func(ctx context.Context, r *http.Request) (models.Caller, error) {
			return models.Caller{}, errors.New("bad token")
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireRole(models.RoleHR, models.RoleAdmin)(ok)

	tests := []struct {
		name   string
		caller *models.Caller
		want   int
	}{
		{"no caller", nil, http.StatusUnauthorized},
		{"employee", &models.Caller{Role: models.RoleEmployee}, http.StatusForbidden},
		{"hr", &models.Caller{Role: models.RoleHR}, http.StatusNoContent},
		{"admin", &models.Caller{Role: models.RoleAdmin}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.caller != nil {
				r = r.WithContext(userctx.New(r.Context(), *tt.caller))
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, r)

			require.Equal(t, tt.want, rec.Code)
		})
	}
}
