// Command issuetoken prints access token for a caller
// The server has no login: tokens are issued by the identity provider in front of it,
// this tool signs them with the same secret for local runs and manual checks
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/service/auth/tokenmanager"
)

const SecretKeyBytesLen = 32

var roles = []string{models.RoleEmployee, models.RoleHR, models.RoleAdmin, models.RoleProvider}

func main() {
	if err := run(os.Getenv, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
		os.Exit(1)
	}
}

func run(getenv func(string) string, args []string, out io.Writer) error {
	var (
		genSecret bool
		secret    = getenv("SECRET_KEY")
		userID    string
		tenantID  string
		role      = models.RoleEmployee
		ttl       = 24 * time.Hour
	)

	fs := pflag.NewFlagSet("issuetoken", pflag.ContinueOnError)
	fs.BoolVar(&genSecret, "gen-secret", false, "Print new random secret key and exit")
	fs.StringVarP(&secret, "secret-key", "s", secret, "Secret key the server uses")
	fs.StringVarP(&userID, "user", "u", "", "User id, random if empty")
	fs.StringVarP(&tenantID, "tenant", "t", "", "Tenant id")
	fs.StringVarP(&role, "role", "r", role, "Role (employee, hr, admin, provider)")
	fs.DurationVar(&ttl, "ttl", ttl, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if genSecret {
		s, err := newSecret()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, s)
		return err
	}

	caller, err := parseCaller(userID, tenantID, role)
	if err != nil {
		return err
	}

	tm, err := tokenmanager.New(tokenmanager.Config{SecretKey: secret, AccessTTL: ttl})
	if err != nil {
		return err
	}

	token, err := tm.Issue(caller)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token.Value)
	return err
}

func parseCaller(userID string, tenantID string, role string) (models.Caller, error) {
	var (
		caller = models.Caller{ID: uuid.New(), Role: role}
		err    error
	)

	if userID != "" {
		if caller.ID, err = uuid.Parse(userID); err != nil {
			return caller, fmt.Errorf("invalid user id: %w", err)
		}
	}
	if tenantID == "" {
		return caller, errors.New("tenant id is required")
	}
	if caller.TenantID, err = uuid.Parse(tenantID); err != nil {
		return caller, fmt.Errorf("invalid tenant id: %w", err)
	}
	if !slices.Contains(roles, role) {
		return caller, fmt.Errorf("unknown role %q", role)
	}

	return caller, nil
}

func newSecret() (string, error) {
	b := make([]byte, SecretKeyBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating secret key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
