package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Config identifies a provider and the client registered with it.
type Config struct {
	ID           string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Extra holds token endpoint response fields that are not part of [models.OAuthToken], such as id_token.
type Extra map[string]any

// String returns the value at key when it is a non-empty string.
func (e Extra) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Provider runs the authorization code and refresh flows for a single provider.
type Provider struct {
	cfg       Config
	endpoint  oauth2.Config
	store     models.TokenStore
	transport *Transport
	logger    *log.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewProvider creates a [Provider] that keeps its token in store.
func NewProvider(cfg Config, store models.TokenStore, transport *Transport, logger *log.Logger) *Provider {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if transport == nil {
		transport = NewTransport(TransportOptions{Logger: logger})
	}

	return &Provider{
		cfg: cfg,
		endpoint: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL},
		},
		store:     store,
		transport: transport,
		logger:    shared.WithLogger(logger, "provider", cfg.ID),
		now:       time.Now,
	}
}

// ID returns the provider identifier used as the token key and state domain.
func (p *Provider) ID() string { return p.cfg.ID }

// Transport returns the transport used for token calls, for adapters making API calls.
func (p *Provider) Transport() *Transport { return p.transport }

// CanOperate reports whether both client credentials are configured.
func (p *Provider) CanOperate() bool {
	return p.cfg.ClientID != "" && p.cfg.ClientSecret != ""
}

// AuthorizationURL builds the consent screen URL. The "state" entry of extra becomes the state parameter;
// the remaining entries are appended as-is.
func (p *Provider) AuthorizationURL(redirectURI string, extra map[string]string) string {
	cfg := p.endpoint
	cfg.RedirectURL = redirectURI

	opts := make([]oauth2.AuthCodeOption, 0, len(extra))
	for k, v := range extra {
		if k == "state" {
			continue
		}
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(extra["state"], opts...)
}

// Exchange trades an authorization code for a token. The token is not stored.
func (p *Provider) Exchange(ctx context.Context, code, redirectURI string, headers map[string]string) (*models.OAuthToken, Extra, error) {
	if !p.CanOperate() {
		return nil, nil, shared.ErrConfigurationMissing
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}

	payload, err := p.transport.Send(ctx, Request{Method: http.MethodPost, URL: p.cfg.TokenURL, Form: form, Headers: headers})
	if err != nil {
		exchangesTotal.WithLabelValues(p.cfg.ID, "error").Inc()
		p.logger.Error("authorization code exchange failed", "err", err)
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}

	token, extra, err := p.tokenFrom(payload, p.now())
	exchangesTotal.WithLabelValues(p.cfg.ID, result(err)).Inc()
	if err != nil {
		p.logger.Error("invalid token response", "err", err)
		return nil, nil, err
	}

	p.logger.Info("exchanged authorization code", "expires_at", token.ExpiresAt)
	return token, extra, nil
}

// Save stores token as this provider's token.
func (p *Provider) Save(ctx context.Context, token *models.OAuthToken) error {
	token.Provider = p.cfg.ID
	if err := p.store.Upsert(ctx, token); err != nil {
		return fmt.Errorf("failed to store %s token: %w", p.cfg.ID, err)
	}
	return nil
}

// AccessToken returns a usable token, refreshing and storing it first when it has expired.
//
// It returns an error wrapping [shared.ErrNotLinked] when no token is stored and [shared.ErrExchangeFailed]
// when the refresh fails. A failed refresh leaves the stored token untouched.
func (p *Provider) AccessToken(ctx context.Context, headers map[string]string) (*models.OAuthToken, error) {
	token, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if !token.Expired(p.now()) {
		return token, nil
	}
	if !p.CanOperate() {
		return nil, shared.ErrConfigurationMissing
	}

	v, err, _ := p.group.Do(p.cfg.ID, func() (any, error) {
		// another flight may have finished between our load and this one
		current, err := p.load(ctx)
		if err != nil {
			return nil, err
		}
		if !current.Expired(p.now()) {
			return current, nil
		}
		return p.refresh(context.WithoutCancel(ctx), current, headers)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.OAuthToken), nil
}

func (p *Provider) refresh(ctx context.Context, current *models.OAuthToken, headers map[string]string) (*models.OAuthToken, error) {
	if !current.HasRefreshToken() {
		refreshesTotal.WithLabelValues(p.cfg.ID, "error").Inc()
		p.logger.Warn("token expired and no refresh token is stored")
		return nil, fmt.Errorf("%w: %w", shared.ErrExchangeFailed, shared.ErrNoRefreshToken)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
	}

	payload, err := p.transport.Send(ctx, Request{Method: http.MethodPost, URL: p.cfg.TokenURL, Form: form, Headers: headers})
	if err != nil {
		refreshesTotal.WithLabelValues(p.cfg.ID, "error").Inc()
		p.logger.Error("token refresh failed", "err", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}

	token, _, err := p.tokenFrom(payload, p.now())
	if err != nil {
		refreshesTotal.WithLabelValues(p.cfg.ID, "error").Inc()
		p.logger.Error("invalid refresh response", "err", err)
		return nil, err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}
	if token.Scope == "" {
		token.Scope = current.Scope
	}

	if err := p.store.Upsert(ctx, token); err != nil {
		refreshesTotal.WithLabelValues(p.cfg.ID, "error").Inc()
		return nil, fmt.Errorf("failed to store refreshed %s token: %w", p.cfg.ID, err)
	}

	refreshesTotal.WithLabelValues(p.cfg.ID, "ok").Inc()
	p.logger.Info("refreshed access token", "expires_at", token.ExpiresAt)
	return token, nil
}

func (p *Provider) load(ctx context.Context) (*models.OAuthToken, error) {
	token, err := p.store.Load(ctx, p.cfg.ID)
	if errors.Is(err, shared.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotLinked, p.cfg.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s token: %w", p.cfg.ID, err)
	}
	return token, nil
}

// tokenFrom builds a token from a token endpoint response received at received.
func (p *Provider) tokenFrom(payload Payload, received time.Time) (*models.OAuthToken, Extra, error) {
	access, ok := payload.String("access_token")
	if !ok {
		return nil, nil, fmt.Errorf("%w: response has no access_token", shared.ErrExchangeFailed)
	}

	token := &models.OAuthToken{
		Provider:    p.cfg.ID,
		AccessToken: access,
		ExpiresAt:   received.Add(time.Duration(seconds(payload["expires_in"])) * time.Second).UTC(),
	}
	token.RefreshToken, _ = payload.String("refresh_token")
	token.Scope, _ = payload.String("scope")

	extra := Extra{}
	for k, v := range payload {
		switch k {
		case "access_token", "refresh_token", "scope", "expires_in":
		default:
			extra[k] = v
		}
	}

	return token, extra, nil
}

// seconds reads expires_in, which providers send as a number or occasionally a string.
func seconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
