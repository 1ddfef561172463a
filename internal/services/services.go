// package services configures the OAuth engine for each linked provider and projects their APIs
//
// Spotify, Google Photos
package services

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/oauth"
	"github.com/desertthunder/linkd/internal/shared"
)

// Adapter binds an [oauth.Provider] to one service: its endpoints, quirks, and account check.
type Adapter interface {
	// ID returns the provider id used in routes, state domains and token keys.
	ID() string

	// Name returns the display name used in user-facing messages (e.g., "Spotify").
	Name() string

	// Provider returns the configured OAuth engine.
	Provider() *oauth.Provider

	// AuthorizationExtras returns query parameters added to the consent URL besides the state.
	AuthorizationExtras() map[string]string

	// TokenHeaders returns headers sent with every token endpoint call.
	TokenHeaders() map[string]string

	// ResolveEmail identifies the account behind a freshly exchanged token.
	ResolveEmail(ctx context.Context, token *models.OAuthToken, extra oauth.Extra) (string, error)

	// Allowed reports whether email may link this provider.
	Allowed(email string) bool
}

// Endpoints overrides provider URLs, mainly for tests. Empty fields keep the defaults.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	APIURL   string
}

func (e Endpoints) withDefaults(d Endpoints) Endpoints {
	if e.AuthURL == "" {
		e.AuthURL = d.AuthURL
	}
	if e.TokenURL == "" {
		e.TokenURL = d.TokenURL
	}
	if e.APIURL == "" {
		e.APIURL = d.APIURL
	}
	return e
}

// Options holds what every adapter constructor needs.
type Options struct {
	Credentials shared.ProviderConfig
	Store       models.TokenStore
	Transport   *oauth.Transport
	Logger      *log.Logger
	Endpoints   Endpoints
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return shared.NewLogger(nil)
	}
	return o.Logger
}

func (o Options) transport() *oauth.Transport {
	if o.Transport == nil {
		return oauth.NewTransport(oauth.TransportOptions{Logger: o.logger()})
	}
	return o.Transport
}
