// Google Photos adapter and Library API projections
//
// Response types based on https://developers.google.com/photos/library/reference/rest
package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/oauth"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/patrickmn/go-cache"
)

const GPhotosID = "gphotos"

const (
	gphotosAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	gphotosTokenURL = "https://oauth2.googleapis.com/token"
	gphotosBaseURL  = "https://photoslibrary.googleapis.com/v1"

	gphotosPageSize = 100
)

var gphotosScopes = []string{"openid", "email", "https://www.googleapis.com/auth/photoslibrary.readonly"}

// Album is a Google Photos album.
type Album struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	ProductURL            string `json:"productUrl"`
	MediaItemsCount       string `json:"mediaItemsCount,omitempty"`
	CoverPhotoBaseURL     string `json:"coverPhotoBaseUrl,omitempty"`
	CoverPhotoMediaItemID string `json:"coverPhotoMediaItemId,omitempty"`
}

// MediaMetadata describes a media item's dimensions and creation time.
type MediaMetadata struct {
	CreationTime string `json:"creationTime"`
	Width        string `json:"width"`
	Height       string `json:"height"`
}

// MediaItem is a photo or video in the library.
type MediaItem struct {
	ID            string        `json:"id"`
	Description   string        `json:"description,omitempty"`
	ProductURL    string        `json:"productUrl"`
	BaseURL       string        `json:"baseUrl"`
	MimeType      string        `json:"mimeType"`
	Filename      string        `json:"filename"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

type albumsPage struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

type mediaItemsPage struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// GPhotosService implements [Adapter] for Google Photos and lists albums and images of the linked library.
//
// Listings are cached for the configured TTL; base URLs returned by the API stay valid for about an hour.
type GPhotosService struct {
	provider  *oauth.Provider
	transport *oauth.Transport
	creds     shared.ProviderConfig
	apiURL    string
	cache     *cache.Cache
	pick      func(n int) int
	logger    *log.Logger
}

var _ Adapter = (*GPhotosService)(nil)

// NewGPhotosService creates the Google Photos adapter. A zero cacheTTL disables listing caching.
func NewGPhotosService(opts Options, cacheTTL time.Duration) *GPhotosService {
	endpoints := opts.Endpoints.withDefaults(Endpoints{
		AuthURL:  gphotosAuthURL,
		TokenURL: gphotosTokenURL,
		APIURL:   gphotosBaseURL,
	})
	logger := opts.logger()
	transport := opts.transport()

	provider := oauth.NewProvider(oauth.Config{
		ID:           GPhotosID,
		AuthURL:      endpoints.AuthURL,
		TokenURL:     endpoints.TokenURL,
		ClientID:     opts.Credentials.ClientID,
		ClientSecret: opts.Credentials.ClientSecret,
		Scopes:       gphotosScopes,
	}, opts.Store, transport, logger)

	var c *cache.Cache
	if cacheTTL > 0 {
		c = cache.New(cacheTTL, 2*cacheTTL)
	}

	return &GPhotosService{
		provider:  provider,
		transport: transport,
		creds:     opts.Credentials,
		apiURL:    endpoints.APIURL,
		cache:     c,
		pick:      rand.IntN,
		logger:    shared.WithLogger(logger, "service", GPhotosID),
	}
}

func (g *GPhotosService) ID() string { return GPhotosID }

func (g *GPhotosService) Name() string { return "Google Photos" }

func (g *GPhotosService) Provider() *oauth.Provider { return g.provider }

// AuthorizationExtras requests offline access so the token response carries a refresh token.
func (g *GPhotosService) AuthorizationExtras() map[string]string {
	return map[string]string{"access_type": "offline"}
}

func (g *GPhotosService) TokenHeaders() map[string]string { return nil }

func (g *GPhotosService) Allowed(email string) bool { return g.creds.Allowed(email) }

// AlbumID returns the configured album served by [GPhotosService.Images].
func (g *GPhotosService) AlbumID() string { return g.creds.AlbumID }

// ResolveEmail reads the email claim of the id_token returned with the exchange. It never fails.
func (g *GPhotosService) ResolveEmail(_ context.Context, _ *models.OAuthToken, extra oauth.Extra) (string, error) {
	return oauth.EmailFromIDToken(extra.String("id_token")), nil
}

// Albums lists every album in the library, following pagination.
//
// The stored token is checked before the cache, so an unlinked account never serves cached listings.
func (g *GPhotosService) Albums(ctx context.Context) ([]Album, error) {
	token, err := g.provider.AccessToken(ctx, g.TokenHeaders())
	if err != nil {
		return nil, err
	}

	if v, ok := g.cached("albums"); ok {
		return v.([]Album), nil
	}

	var albums []Album
	pageToken := ""
	for {
		q := url.Values{"pageSize": {"50"}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page albumsPage
		req := oauth.Request{URL: g.apiURL + "/albums?" + q.Encode(), Bearer: token.AccessToken}
		if err := g.transport.Do(ctx, req, &page); err != nil {
			return nil, fmt.Errorf("failed to list albums: %w", err)
		}

		albums = append(albums, page.Albums...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	g.store("albums", albums)
	return albums, nil
}

// Images lists every media item in albumID, following pagination.
func (g *GPhotosService) Images(ctx context.Context, albumID string) ([]MediaItem, error) {
	token, err := g.provider.AccessToken(ctx, g.TokenHeaders())
	if err != nil {
		return nil, err
	}

	if albumID == "" {
		return nil, fmt.Errorf("%w: album id is not configured", shared.ErrMissingConfig)
	}

	key := "media:" + albumID
	if v, ok := g.cached(key); ok {
		return v.([]MediaItem), nil
	}

	var items []MediaItem
	pageToken := ""
	for {
		body := map[string]any{"albumId": albumID, "pageSize": gphotosPageSize}
		if pageToken != "" {
			body["pageToken"] = pageToken
		}

		var page mediaItemsPage
		req := oauth.Request{Method: http.MethodPost, URL: g.apiURL + "/mediaItems:search", Bearer: token.AccessToken, JSON: body}
		if err := g.transport.Do(ctx, req, &page); err != nil {
			return nil, fmt.Errorf("failed to search media items: %w", err)
		}

		items = append(items, page.MediaItems...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	g.store(key, items)
	return items, nil
}

// RandomImage picks one item of items. It returns false for an empty list.
func (g *GPhotosService) RandomImage(items []MediaItem) (MediaItem, bool) {
	if len(items) == 0 {
		return MediaItem{}, false
	}
	return items[g.pick(len(items))], true
}

// Flush drops every cached listing.
func (g *GPhotosService) Flush() {
	if g.cache != nil {
		g.cache.Flush()
	}
}

func (g *GPhotosService) cached(key string) (any, bool) {
	if g.cache == nil {
		return nil, false
	}
	return g.cache.Get(key)
}

// store caches non-empty listings only, so an empty album is retried on the next call.
func (g *GPhotosService) store(key string, v any) {
	if g.cache == nil {
		return
	}
	switch l := v.(type) {
	case []Album:
		if len(l) == 0 {
			return
		}
	case []MediaItem:
		if len(l) == 0 {
			return
		}
	}
	g.cache.SetDefault(key, v)
}
