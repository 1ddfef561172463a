// package models defines the persisted OAuth records and the store contracts around them
package models

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// StateCodeLength is the number of characters in a generated state code.
const StateCodeLength = 30

// StateCode is a single-use anti-CSRF token issued for one provider domain.
type StateCode struct {
	ID        string
	Domain    string
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the code can no longer be verified at now.
func (s *StateCode) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// OAuthToken is the stored credential set for a provider. At most one exists per Provider.
//
// An empty RefreshToken or Scope means the provider did not send one.
type OAuthToken struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token must be refreshed at now.
// A token expiring exactly at now is expired.
func (t *OAuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// HasRefreshToken reports whether a refresh token is present.
func (t *OAuthToken) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// Validate checks the fields required for persistence.
func (t *OAuthToken) Validate() error {
	if t.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if t.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if t.ExpiresAt.IsZero() {
		return fmt.Errorf("expiry is required")
	}
	return nil
}

// OAuth2 converts the record into an [oauth2.Token] for use with [oauth2.StaticTokenSource].
func (t *OAuthToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// TokenStore persists one [OAuthToken] per provider.
type TokenStore interface {
	// Load returns the token for provider or an error wrapping shared.ErrTokenNotFound.
	Load(ctx context.Context, provider string) (*OAuthToken, error)
	// Upsert replaces any existing token for token.Provider.
	Upsert(ctx context.Context, token *OAuthToken) error
}

// StateCodeStore issues and consumes [StateCode] values.
type StateCodeStore interface {
	// Generate purges expired codes and issues a new one for domain valid for ttl.
	Generate(ctx context.Context, domain string, ttl time.Duration) (*StateCode, error)
	// Verify purges expired codes and consumes (domain, code). It reports false on a miss.
	Verify(ctx context.Context, domain, code string) (bool, error)
}
