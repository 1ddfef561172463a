package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/shared"
	tu "github.com/desertthunder/linkd/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
)

// memStore is an in-memory [models.TokenStore] that counts writes.
type memStore struct {
	mu      sync.Mutex
	tokens  map[string]models.OAuthToken
	upserts int
}

func newMemStore() *memStore {
	return &memStore{tokens: map[string]models.OAuthToken{}}
}

func (s *memStore) Load(_ context.Context, provider string) (*models.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, provider)
	}
	return &tok, nil
}

func (s *memStore) Upsert(_ context.Context, token *models.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.tokens[token.Provider]; ok && token.RefreshToken == "" {
		token.RefreshToken = prev.RefreshToken
	}
	s.tokens[token.Provider] = *token
	s.upserts++
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func newTestProvider(t *testing.T, tokenURL string, store models.TokenStore, clk *tu.Clock) *Provider {
	t.Helper()
	p := NewProvider(Config{
		ID:           "spotify",
		AuthURL:      "https://accounts.example.com/authorize",
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       []string{"user-read-email", "user-top-read"},
	}, store, newTestTransport(), shared.NewLogger(io.Discard))
	if clk != nil {
		p.now = clk.Now
	}
	return p
}

func TestProviderCanOperate(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
		want   bool
	}{
		{"Both Set", "id", "secret", true},
		{"Missing ID", "", "secret", false},
		{"Missing Secret", "id", "", false},
		{"Neither", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(Config{ID: "x", ClientID: tt.id, ClientSecret: tt.secret}, newMemStore(), nil, shared.NewLogger(io.Discard))
			if got := p.CanOperate(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestProviderAuthorizationURL(t *testing.T) {
	p := newTestProvider(t, "https://accounts.example.com/api/token", newMemStore(), nil)

	raw := p.AuthorizationURL("http://localhost:3000/api/spotify/callback", map[string]string{
		"state":       "abc123",
		"show_dialog": "true",
	})

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}

	if u.Host != "accounts.example.com" || u.Path != "/authorize" {
		t.Errorf("unexpected endpoint %s", raw)
	}

	q := u.Query()
	want := map[string]string{
		"response_type": "code",
		"client_id":     "client-id",
		"redirect_uri":  "http://localhost:3000/api/spotify/callback",
		"scope":         "user-read-email user-top-read",
		"state":         "abc123",
		"show_dialog":   "true",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestProviderExchange(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		var form url.Values
		var basic string
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			form = r.PostForm
			basic = r.Header.Get("Authorization")
			w.Write([]byte(`{"access_token":"at","refresh_token":"rt","scope":"email","expires_in":3600,"token_type":"Bearer","id_token":"a.b.c"}`))
		})
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))

		token, extra, err := p.Exchange(ctx, "the-code", "http://localhost/cb", map[string]string{"Authorization": "Basic xyz"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for k, v := range map[string]string{
			"grant_type":    "authorization_code",
			"client_id":     "client-id",
			"client_secret": "client-secret",
			"code":          "the-code",
			"redirect_uri":  "http://localhost/cb",
		} {
			if form.Get(k) != v {
				t.Errorf("form %s: expected %q, got %q", k, v, form.Get(k))
			}
		}
		if basic != "Basic xyz" {
			t.Errorf("expected adapter header to be sent, got %q", basic)
		}

		if token.AccessToken != "at" || token.RefreshToken != "rt" || token.Scope != "email" || token.Provider != "spotify" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.ExpiresAt.Equal(start.Add(3600 * time.Second)) {
			t.Errorf("expected expiry %v, got %v", start.Add(3600*time.Second), token.ExpiresAt)
		}
		if extra.String("id_token") != "a.b.c" || extra.String("token_type") != "Bearer" {
			t.Errorf("unexpected extras %v", extra)
		}
		if _, ok := extra["access_token"]; ok {
			t.Error("token fields must not leak into extras")
		}
		if store.count() != 0 {
			t.Error("exchange must not persist the token")
		}
	})

	t.Run("Optional Fields Absent", func(t *testing.T) {
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"at","expires_in":"60"}`))
		})
		p := newTestProvider(t, srv.URL, newMemStore(), tu.NewClock(start))

		token, _, err := p.Exchange(ctx, "c", "r", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.RefreshToken != "" || token.Scope != "" {
			t.Errorf("expected empty optional fields, got %+v", token)
		}
		if !token.ExpiresAt.Equal(start.Add(time.Minute)) {
			t.Errorf("expected string expires_in to be honoured, got %v", token.ExpiresAt)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		})
		p := newTestProvider(t, srv.URL, newMemStore(), nil)

		_, _, err := p.Exchange(ctx, "c", "r", nil)
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", err)
		}
		if !errors.Is(err, shared.ErrRequestFailed) {
			t.Errorf("expected transport failure to be wrapped, got %v", err)
		}
	})

	t.Run("Missing Access Token", func(t *testing.T) {
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"expires_in":3600}`))
		})
		p := newTestProvider(t, srv.URL, newMemStore(), nil)

		if _, _, err := p.Exchange(ctx, "c", "r", nil); !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", err)
		}
	})

	t.Run("Not Configured", func(t *testing.T) {
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"at"}`))
		})
		p := NewProvider(Config{ID: "spotify", TokenURL: srv.URL, ClientID: "id"}, newMemStore(), newTestTransport(), shared.NewLogger(io.Discard))

		if _, _, err := p.Exchange(ctx, "c", "r", nil); !errors.Is(err, shared.ErrConfigurationMissing) {
			t.Errorf("expected ErrConfigurationMissing, got %v", err)
		}
		if srv.Hits() != 0 {
			t.Errorf("expected no network call, got %d", srv.Hits())
		}
	})
}

func TestProviderAccessToken(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	refreshServer := func(t *testing.T, body string) (*tu.CountingServer, *url.Values) {
		var form url.Values
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			form = r.PostForm
			w.Write([]byte(body))
		})
		return srv, &form
	}

	seed := func(t *testing.T, store *memStore, expires time.Time) {
		t.Helper()
		err := store.Upsert(ctx, &models.OAuthToken{
			Provider:     "spotify",
			AccessToken:  "old-access",
			RefreshToken: "old-refresh",
			Scope:        "user-top-read",
			ExpiresAt:    expires,
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		store.upserts = 0
	}

	t.Run("Not Linked", func(t *testing.T) {
		srv, _ := refreshServer(t, `{}`)
		p := newTestProvider(t, srv.URL, newMemStore(), nil)

		_, err := p.AccessToken(ctx, nil)
		if !errors.Is(err, shared.ErrNotLinked) {
			t.Errorf("expected ErrNotLinked, got %v", err)
		}
		if srv.Hits() != 0 {
			t.Errorf("expected no network call, got %d", srv.Hits())
		}
	})

	t.Run("Expiry Boundaries", func(t *testing.T) {
		srv, form := refreshServer(t, `{"access_token":"new-access","expires_in":3600}`)
		clk := tu.NewClock(start)
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, clk)
		seed(t, store, start.Add(3600*time.Second))

		clk.Set(start.Add(3599 * time.Second))
		token, err := p.AccessToken(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "old-access" || srv.Hits() != 0 {
			t.Errorf("expected stored token without refresh, got %s after %d calls", token.AccessToken, srv.Hits())
		}

		clk.Set(start.Add(3601 * time.Second))
		token, err = p.AccessToken(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if srv.Hits() != 1 {
			t.Errorf("expected exactly one refresh call, got %d", srv.Hits())
		}
		if token.AccessToken != "new-access" {
			t.Errorf("expected refreshed token, got %s", token.AccessToken)
		}
		if !token.ExpiresAt.Equal(start.Add(3601*time.Second + time.Hour)) {
			t.Errorf("expiry must be based on the refresh time, got %v", token.ExpiresAt)
		}

		for k, v := range map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": "old-refresh",
			"client_id":     "client-id",
			"client_secret": "client-secret",
		} {
			if form.Get(k) != v {
				t.Errorf("form %s: expected %q, got %q", k, v, form.Get(k))
			}
		}

		if _, err := p.AccessToken(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if srv.Hits() != 1 {
			t.Errorf("a fresh token must not refresh again, got %d calls", srv.Hits())
		}
	})

	t.Run("Expiry Equal To Now", func(t *testing.T) {
		srv, _ := refreshServer(t, `{"access_token":"new-access","expires_in":3600}`)
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		seed(t, store, start)

		if _, err := p.AccessToken(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if srv.Hits() != 1 {
			t.Errorf("expected refresh when expiry equals now, got %d calls", srv.Hits())
		}
	})

	t.Run("Refresh Token Retained", func(t *testing.T) {
		srv, _ := refreshServer(t, `{"access_token":"new-access","expires_in":3600}`)
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		seed(t, store, start.Add(-time.Minute))

		token, err := p.AccessToken(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.RefreshToken != "old-refresh" {
			t.Errorf("expected old refresh token to be kept, got %q", token.RefreshToken)
		}
		if token.Scope != "user-top-read" {
			t.Errorf("expected old scope to be kept, got %q", token.Scope)
		}

		stored, _ := store.Load(ctx, "spotify")
		if stored.RefreshToken != "old-refresh" || stored.AccessToken != "new-access" {
			t.Errorf("unexpected stored token %+v", stored)
		}
		if store.count() != 1 {
			t.Errorf("expected one upsert, got %d", store.count())
		}
	})

	t.Run("Refresh Token Replaced", func(t *testing.T) {
		srv, _ := refreshServer(t, `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`)
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		seed(t, store, start.Add(-time.Minute))

		if _, err := p.AccessToken(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := store.Load(ctx, "spotify")
		if stored.RefreshToken != "new-refresh" {
			t.Errorf("expected new refresh token, got %q", stored.RefreshToken)
		}
	})

	t.Run("Refresh Failure Keeps Stale Token", func(t *testing.T) {
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		seed(t, store, start.Add(-time.Minute))

		_, err := p.AccessToken(ctx, nil)
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", err)
		}

		stored, _ := store.Load(ctx, "spotify")
		if stored.AccessToken != "old-access" || store.count() != 0 {
			t.Errorf("stale token must stay in place, got %+v after %d writes", stored, store.count())
		}

		if _, err := p.AccessToken(ctx, nil); err == nil {
			t.Error("expected second attempt to retry and fail again")
		}
		if srv.Hits() != 2 {
			t.Errorf("expected each call to retry the refresh, got %d calls", srv.Hits())
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		srv, _ := refreshServer(t, `{}`)
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		store.tokens["spotify"] = models.OAuthToken{Provider: "spotify", AccessToken: "a", ExpiresAt: start.Add(-time.Second)}

		_, err := p.AccessToken(ctx, nil)
		if !errors.Is(err, shared.ErrNoRefreshToken) || !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if srv.Hits() != 0 {
			t.Errorf("expected no network call, got %d", srv.Hits())
		}
	})

	t.Run("Not Configured", func(t *testing.T) {
		srv, _ := refreshServer(t, `{}`)
		store := newMemStore()
		p := NewProvider(Config{ID: "spotify", TokenURL: srv.URL}, store, newTestTransport(), shared.NewLogger(io.Discard))
		p.now = tu.NewClock(start).Now
		seed(t, store, start.Add(-time.Minute))

		if _, err := p.AccessToken(ctx, nil); !errors.Is(err, shared.ErrConfigurationMissing) {
			t.Errorf("expected ErrConfigurationMissing, got %v", err)
		}
		if srv.Hits() != 0 {
			t.Errorf("expected no network call, got %d", srv.Hits())
		}
	})

	t.Run("Concurrent Callers Share One Refresh", func(t *testing.T) {
		release := make(chan struct{})
		srv := tu.NewCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.Write([]byte(`{"access_token":"new-access","expires_in":3600}`))
		})
		store := newMemStore()
		p := newTestProvider(t, srv.URL, store, tu.NewClock(start))
		seed(t, store, start.Add(-time.Minute))

		const callers = 8
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tok, err := p.AccessToken(ctx, nil)
				if err == nil && tok.AccessToken != "new-access" {
					err = fmt.Errorf("got %s", tok.AccessToken)
				}
				errs <- err
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("caller failed: %v", err)
			}
		}
		if srv.Hits() != 1 {
			t.Errorf("expected one refresh request, got %d", srv.Hits())
		}
		if store.count() != 1 {
			t.Errorf("expected one upsert, got %d", store.count())
		}
	})

	t.Run("Save", func(t *testing.T) {
		store := newMemStore()
		p := newTestProvider(t, "http://unused.invalid", store, nil)

		err := p.Save(ctx, &models.OAuthToken{AccessToken: "a", ExpiresAt: start})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored, err := store.Load(ctx, "spotify"); err != nil || stored.AccessToken != "a" {
			t.Errorf("expected token saved under provider id, got %v, %v", stored, err)
		}
	})
}

func TestRegisterMetrics(t *testing.T) {
	if err := RegisterMetrics(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RegisterMetrics(nil); err != nil {
		t.Errorf("second registration should be tolerated: %v", err)
	}

	t.Run("metric names", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := RegisterMetrics(reg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		exchangesTotal.WithLabelValues("spotify", "ok").Add(0)
		refreshesTotal.WithLabelValues("spotify", "ok").Add(0)
		requestsTotal.WithLabelValues("ok").Add(0)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("failed to gather: %v", err)
		}
		names := map[string]bool{}
		for _, f := range families {
			names[f.GetName()] = true
		}
		for _, want := range []string{
			"linkd_oauth_exchanges_total",
			"linkd_oauth_refreshes_total",
			"linkd_oauth_requests_total",
		} {
			if !names[want] {
				t.Errorf("expected %s to be registered, got %v", want, names)
			}
		}
	})
}
