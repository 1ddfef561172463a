// Package services defines the [Adapter] interface for linked OAuth providers and implements it for Spotify
// and Google Photos.
//
// # Adapters
//
// Each adapter owns an [oauth.Provider] configured with the provider's endpoints and scopes, and adds
// the provider-specific parts of the flow:
//   - extra consent URL parameters (show_dialog for Spotify, access_type=offline for Google)
//   - headers for token endpoint calls (Spotify wants the client credentials as Basic auth)
//   - resolving the account email after an exchange, checked against the configured allow-list
//
// # Spotify
//
// [SpotifyService] resolves the email with GET /me and serves the short-term top tracks of the linked
// account, projected to [TopTrack].
//
// # Google Photos
//
// [GPhotosService] reads the email from the id_token returned by the token endpoint. Album and media
// listings follow nextPageToken until exhausted and are cached with go-cache.
//
// # Error Handling
//
// Data methods return the engine's errors unchanged:
//   - [shared.ErrNotLinked] : no token stored
//   - [shared.ErrExchangeFailed] : the stored token expired and could not be refreshed
//   - [shared.ErrRequestFailed] : the provider API call failed
package services
