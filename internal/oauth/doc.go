// Package oauth implements the authorization code and refresh flows shared by every linked provider.
//
// # Transport
//
// [Transport] sends one JSON request per call. Network errors, non-2xx responses and undecodable
// bodies all come back as a [RequestError], which matches [shared.ErrRequestFailed] with [errors.Is].
// Nothing is retried.
//
// # Provider
//
// A [Provider] is built from a [Config] and a [models.TokenStore]. It never keeps tokens in memory:
// every [Provider.AccessToken] call loads the stored token, refreshes it when it has expired and
// writes the result back. Concurrent refreshes for the same provider are collapsed into one request.
//
// [Provider.Exchange] returns the new token without storing it so callers can check the account
// before calling [Provider.Save].
package oauth
