package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/benefitmart/internal/models"
)

const (
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
)

var ErrNoToken = errors.New("access token not found in request")

type tokenManager interface {
	Issue(caller models.Caller) (models.IssuedToken, error)
	ParseAccess(access string) (models.Caller, error)
}

type Config struct {
	// Header to read access token from
	// If not set than default is used
	AccessHeaderName string

	// Auth scheme token prefixed with in header
	// If not set than default is used
	AccessAuthScheme string
}

// AuthService resolves request caller from its access token
// Users and sessions live in an external identity system, tokens only carry the result
type AuthService struct {
	token tokenManager

	accessHeaderName string
	accessAuthScheme string
}

func NewService(cfg Config, tm tokenManager) *AuthService {
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}

	return &AuthService{
		token:            tm,
		accessHeaderName: cfg.AccessHeaderName,
		accessAuthScheme: cfg.AccessAuthScheme,
	}
}

// Auth returns caller from request access token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.Caller, error) {
	header := r.Header.Get(s.accessHeaderName)

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || token == "" {
		return models.Caller{}, ErrNoToken
	}

	caller, err := s.token.ParseAccess(strings.TrimSpace(token))
	if err != nil {
		return models.Caller{}, fmt.Errorf("invalid access token: %w", err)
	}

	return caller, nil
}

// SetTokenToRequest issues token for the caller and sets it to request header
// Used by clients and tests
func (s *AuthService) SetTokenToRequest(r *http.Request, caller models.Caller) error {
	issued, err := s.token.Issue(caller)
	if err != nil {
		return err
	}

	r.Header.Set(s.accessHeaderName, s.accessAuthScheme+" "+issued.Value)
	return nil
}
