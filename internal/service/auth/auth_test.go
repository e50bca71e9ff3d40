package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/service/auth/tokenmanager"
)

func Test_Auth(t *testing.T) {
	tm, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err, "token manager should be created without errors")

	caller := models.Caller{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleEmployee}

	t.Run("new auth service defaults", func(t *testing.T) {
		s := NewService(Config{}, tm)

		require.Equal(t, defaultAccessHeaderName, s.accessHeaderName, "default access header name should be set")
		require.Equal(t, defaultAccessAuthScheme, s.accessAuthScheme, "default access auth")
	})

	t.Run("token round trip", func(t *testing.T) {
		s := NewService(Config{}, tm)
		r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)

		err := s.SetTokenToRequest(r, caller)
		require.NoError(t, err)
		require.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		got, err := s.Auth(t.Context(), r)
		require.NoError(t, err)
		require.Equal(t, caller, got)
	})

	t.Run("custom header", func(t *testing.T) {
		s := NewService(Config{AccessHeaderName: "X-Access", AccessAuthScheme: "Token"}, tm)
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		require.NoError(t, s.SetTokenToRequest(r, caller))
		require.Empty(t, r.Header.Get("Authorization"))

		got, err := s.Auth(t.Context(), r)
		require.NoError(t, err)
		require.Equal(t, caller.ID, got.ID)
	})

	t.Run("auth fails", func(t *testing.T) {
		s := NewService(Config{}, tm)

		tests := []struct {
			name   string
			header string
		}{
			{"no header", ""},
			{"no scheme", "token"},
			{"other scheme", "Basic dXNlcjpwd2Q="},
			{"empty token", "Bearer "},
			{"garbage token", "Bearer not-a-jwt"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				if tt.header != "" {
					r.Header.Set("Authorization", tt.header)
				}

				_, err := s.Auth(t.Context(), r)
				require.Error(t, err)
			})
		}
	})
}
