// Package repositories implements persistence for OAuth tokens and state codes.
//
// Key Implementations:
//   - [TokenRepository] : one row per provider in oauth_tokens; Upsert replaces in place and keeps a stored refresh token when the new one is absent
//   - [StateCodeRepository] : state_codes rows scoped by domain; every call purges expired rows, Verify consumes with a single DELETE
//   - [RedisStateCodeStore] : the same contract on Redis keys with native TTLs, for deployments running several server instances
//
// The SQL repositories run on SQLite (mattn/go-sqlite3) or PostgreSQL (pgx stdlib). Queries are written with "?"
// placeholders and passed through [shared.Rebind]. Timestamps are stored as unix milliseconds so comparisons behave
// the same on both drivers.
package repositories
