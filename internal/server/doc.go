// Package server provides HTTP routing, middleware, and the OAuth and data handlers of the linking service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Handlers
//
// [OAuthHandler] serves /api/{provider}/login and /api/{provider}/callback for one adapter.
//
// Login issues a state code and redirects to the provider's consent screen. The callback checks,
// in order: client credentials, the state code (consumed on success), a provider error, the code,
// the exchange, the account email and the allow-list. The token is stored only once every check passes.
//
// # Data Handlers
//
// [SpotifyHandler] and [GPhotosHandler] serve JSON projections of provider data. A missing or
// unrefreshable token answers 503 with "account unlinked"; any provider failure answers 503 with
// "error communicating with provider". The albums listing additionally requires the admin key.
//
// # Server
//
// [Server] assembles the router with request id, real ip, recovery and request logging middleware,
// and exposes /healthz and /metrics next to the provider routes.
package server
