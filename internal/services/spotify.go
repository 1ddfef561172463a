// Spotify adapter and Web API projections
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/oauth"
	"github.com/desertthunder/linkd/internal/shared"
)

const SpotifyID = "spotify"

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

var spotifyScopes = []string{"user-read-email", "user-top-read"}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Popularity   int             `json:"popularity"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// SpotifyTopTracks is the paged response of /me/top/tracks.
type SpotifyTopTracks struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
	Next  *string        `json:"next"`
}

// TopTrack is the public projection of a [SpotifyTrack].
type TopTrack struct {
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	Album   string   `json:"album"`
	URL     string   `json:"url"`
	Image   string   `json:"image"`
}

// SpotifyService implements [Adapter] for Spotify and reads the linked account's listening data.
type SpotifyService struct {
	provider  *oauth.Provider
	transport *oauth.Transport
	creds     shared.ProviderConfig
	apiURL    string
	basic     string
	logger    *log.Logger
}

var _ Adapter = (*SpotifyService)(nil)

// NewSpotifyService creates the Spotify adapter.
func NewSpotifyService(opts Options) *SpotifyService {
	endpoints := opts.Endpoints.withDefaults(Endpoints{
		AuthURL:  spotifyAuthURL,
		TokenURL: spotifyTokenURL,
		APIURL:   spotifyBaseURL,
	})
	logger := opts.logger()
	transport := opts.transport()

	provider := oauth.NewProvider(oauth.Config{
		ID:           SpotifyID,
		AuthURL:      endpoints.AuthURL,
		TokenURL:     endpoints.TokenURL,
		ClientID:     opts.Credentials.ClientID,
		ClientSecret: opts.Credentials.ClientSecret,
		Scopes:       spotifyScopes,
	}, opts.Store, transport, logger)

	credentials := opts.Credentials.ClientID + ":" + opts.Credentials.ClientSecret

	return &SpotifyService{
		provider:  provider,
		transport: transport,
		creds:     opts.Credentials,
		apiURL:    endpoints.APIURL,
		basic:     "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)),
		logger:    shared.WithLogger(logger, "service", SpotifyID),
	}
}

func (s *SpotifyService) ID() string { return SpotifyID }

func (s *SpotifyService) Name() string { return "Spotify" }

func (s *SpotifyService) Provider() *oauth.Provider { return s.provider }

// AuthorizationExtras forces the consent dialog so a different account can be picked.
func (s *SpotifyService) AuthorizationExtras() map[string]string {
	return map[string]string{"show_dialog": "true"}
}

// TokenHeaders returns the client credentials as a Basic authorization header.
func (s *SpotifyService) TokenHeaders() map[string]string {
	return map[string]string{"Authorization": s.basic}
}

func (s *SpotifyService) Allowed(email string) bool { return s.creds.Allowed(email) }

// ResolveEmail reads the email of the profile that owns token.
func (s *SpotifyService) ResolveEmail(ctx context.Context, token *models.OAuthToken, _ oauth.Extra) (string, error) {
	user, err := s.UserProfile(ctx, token)
	if err != nil {
		return "", err
	}
	if user.Email == "" {
		return oauth.UnknownEmail, nil
	}
	return user.Email, nil
}

// UserProfile retrieves the profile of the account owning token.
func (s *SpotifyService) UserProfile(ctx context.Context, token *models.OAuthToken) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.transport.Do(ctx, oauth.Request{URL: s.apiURL + "/me", Bearer: token.AccessToken}, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch spotify profile: %w", err)
	}
	return &user, nil
}

// TopTracks returns the linked account's short-term top tracks.
func (s *SpotifyService) TopTracks(ctx context.Context) ([]TopTrack, error) {
	token, err := s.provider.AccessToken(ctx, s.TokenHeaders())
	if err != nil {
		return nil, err
	}

	var page SpotifyTopTracks
	req := oauth.Request{URL: s.apiURL + "/me/top/tracks?time_range=short_term", Bearer: token.AccessToken}
	if err := s.transport.Do(ctx, req, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch top tracks: %w", err)
	}

	tracks := make([]TopTrack, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, projectTrack(item))
	}

	s.logger.Debug("fetched top tracks", "count", len(tracks))
	return tracks, nil
}

func projectTrack(t SpotifyTrack) TopTrack {
	track := TopTrack{
		Name:    t.Name,
		Artists: make([]string, 0, len(t.Artists)),
		Album:   t.Album.Name,
		URL:     t.ExternalURLs.Spotify,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		track.Image = t.Album.Images[0].URL
	}
	return track
}
