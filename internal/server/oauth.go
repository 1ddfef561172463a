package server

import (
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
)

const (
	msgMissingCredentials = "Error: clientId or clientSecret is missing, update config!"
	msgInvalidState       = "Error: missing or invalid state parameter"
	msgMissingCode        = "Error: missing code parameter"
	msgExchangeFailed     = "Error while retrieving authentication token"
	msgAccountDetails     = "Error: could not retrieve account details"
	msgStoreFailed        = "Error while storing authentication token"
	msgStateFailed        = "Error: could not issue state code"
)

// OAuthHandler serves the login and callback endpoints of one provider.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	adapter   services.Adapter
	states    models.StateCodeStore
	stateTTL  time.Duration
	publicURL string
	logger    *log.Logger
}

// NewOAuthHandler creates a handler for adapter. An empty publicURL derives the redirect URI from each request.
func NewOAuthHandler(adapter services.Adapter, states models.StateCodeStore, stateTTL time.Duration, publicURL string, logger *log.Logger) *OAuthHandler {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &OAuthHandler{
		adapter:   adapter,
		states:    states,
		stateTTL:  stateTTL,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    shared.WithLogger(logger, "provider", adapter.ID()),
	}
}

func (h *OAuthHandler) prefix() string {
	return "/api/" + h.adapter.ID()
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.prefix() + "/login", h.prefix() + "/callback"}
}

// ServeHTTP dispatches to [OAuthHandler.Login] or [OAuthHandler.Callback].
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case h.prefix() + "/login":
		h.Login(w, r)
	case h.prefix() + "/callback":
		h.Callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// Login issues a state code and redirects to the provider's consent screen.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := h.adapter.Provider()
	if !provider.CanOperate() {
		writePlain(w, http.StatusInternalServerError, msgMissingCredentials)
		return
	}

	state, err := h.states.Generate(r.Context(), h.adapter.ID(), h.stateTTL)
	if err != nil {
		h.logger.Error("failed to generate state code", "err", err)
		writePlain(w, http.StatusInternalServerError, msgStateFailed)
		return
	}

	extra := maps.Clone(h.adapter.AuthorizationExtras())
	if extra == nil {
		extra = map[string]string{}
	}
	extra["state"] = state.Code

	http.Redirect(w, r, provider.AuthorizationURL(h.redirectURI(r), extra), http.StatusFound)
}

// Callback completes the authorization code flow.
//
// The token is stored only after the account email passes the allow-list.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.adapter.Provider()
	q := r.URL.Query()

	if !provider.CanOperate() {
		writePlain(w, http.StatusInternalServerError, msgMissingCredentials)
		return
	}

	state := q.Get("state")
	if state == "" {
		writePlain(w, http.StatusBadRequest, msgInvalidState)
		return
	}
	ok, err := h.states.Verify(ctx, h.adapter.ID(), state)
	if err != nil {
		h.logger.Error("failed to verify state code", "err", err)
		writePlain(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if !ok {
		h.logger.Warn("rejected callback", "err", shared.ErrInvalidState)
		writePlain(w, http.StatusBadRequest, msgInvalidState)
		return
	}

	if q.Has("error") {
		h.logger.Warn("provider denied authorization", "err", shared.ErrProviderDenied, "error", q.Get("error"))
		writePlain(w, http.StatusServiceUnavailable, fmt.Sprintf("%s error: %s", h.adapter.Name(), q.Get("error")))
		return
	}

	code := q.Get("code")
	if !q.Has("code") {
		writePlain(w, http.StatusBadRequest, msgMissingCode)
		return
	}

	token, extra, err := provider.Exchange(ctx, code, h.redirectURI(r), h.adapter.TokenHeaders())
	if err != nil {
		writePlain(w, http.StatusInternalServerError, msgExchangeFailed)
		return
	}

	email, err := h.adapter.ResolveEmail(ctx, token, extra)
	if err != nil {
		h.logger.Error("failed to resolve account", "err", err)
		writePlain(w, http.StatusInternalServerError, msgAccountDetails)
		return
	}

	if !h.adapter.Allowed(email) {
		h.logger.Warn("account not allowed", "err", shared.ErrForbidden, "email", email)
		writePlain(w, http.StatusForbidden, fmt.Sprintf("Error: account is not in the allowlist (logged in as %s)", email))
		return
	}

	if err := provider.Save(ctx, token); err != nil {
		h.logger.Error("failed to store token", "err", err)
		writePlain(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	h.logger.Info("linked account", "email", email)
	writePlain(w, http.StatusOK, "Done! Logged in as "+email)
}

// redirectURI returns the callback URL registered with the provider.
// Without a public URL the scheme comes from X-Forwarded-Proto, which any client can set.
func (h *OAuthHandler) redirectURI(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + h.prefix() + "/callback"
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + h.prefix() + "/callback"
}
