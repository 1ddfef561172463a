// Package models defines the records linkd persists and the contracts of the stores that hold them.
//
// Records:
//   - [StateCode] : a short-lived, single-use code bound to one provider domain, sent as the OAuth2 state parameter
//   - [OAuthToken] : the one credential set kept per provider (access token, optional refresh token, scope, absolute expiry)
//
// Contracts:
//   - [StateCodeStore] : Generate purges expired codes and issues a new one; Verify purges, then consumes on match
//   - [TokenStore] : Load by provider and Upsert (replace in place)
//
// Implementations live in the repositories package (SQL and Redis).
// Expiry rules are owned by the records themselves: a state code is dead once its expiry is before now,
// a token needs refreshing once its expiry is at or before now.
package models
