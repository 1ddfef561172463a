package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/shared"
)

// TokenRepository implements [models.TokenStore] on a SQL database.
type TokenRepository struct {
	db     *sql.DB
	driver string
	clock  clock
}

var _ models.TokenStore = (*TokenRepository)(nil)

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB, driver string) *TokenRepository {
	return &TokenRepository{db: db, driver: driver}
}

// Load retrieves the token stored for provider.
func (r *TokenRepository) Load(ctx context.Context, provider string) (*models.OAuthToken, error) {
	query := shared.Rebind(r.driver, `
		SELECT provider, access_token, refresh_token, scope, expires_at, updated_at
		FROM oauth_tokens
		WHERE provider = ?
	`)

	token, err := scanToken(r.db.QueryRowContext(ctx, query, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}
	return token, nil
}

// Upsert inserts the token or replaces the stored one for the same provider.
//
// A stored refresh token is never replaced by an absent one.
func (r *TokenRepository) Upsert(ctx context.Context, token *models.OAuthToken) error {
	if err := token.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}

	token.UpdatedAt = r.clock.now()

	query := shared.Rebind(r.driver, `
		INSERT INTO oauth_tokens (provider, access_token, refresh_token, scope, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, oauth_tokens.refresh_token),
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)

	refresh := sql.NullString{String: token.RefreshToken, Valid: token.RefreshToken != ""}
	_, err := r.db.ExecContext(ctx, query,
		token.Provider, token.AccessToken, refresh, token.Scope,
		toMillis(token.ExpiresAt), toMillis(token.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

// Delete removes the token for provider, unlinking the account.
func (r *TokenRepository) Delete(ctx context.Context, provider string) error {
	query := shared.Rebind(r.driver, "DELETE FROM oauth_tokens WHERE provider = ?")

	result, err := r.db.ExecContext(ctx, query, provider)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTokenNotFound, provider)
	}
	return nil
}

// List returns every stored token ordered by provider.
func (r *TokenRepository) List(ctx context.Context) ([]*models.OAuthToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, access_token, refresh_token, scope, expires_at, updated_at
		FROM oauth_tokens
		ORDER BY provider ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.OAuthToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tokens, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.OAuthToken, error) {
	var (
		token     models.OAuthToken
		refresh   sql.NullString
		expiresAt int64
		updatedAt int64
	)

	if err := s.Scan(&token.Provider, &token.AccessToken, &refresh, &token.Scope, &expiresAt, &updatedAt); err != nil {
		return nil, err
	}

	token.RefreshToken = refresh.String
	token.ExpiresAt = fromMillis(expiresAt)
	token.UpdatedAt = fromMillis(updatedAt)
	return &token, nil
}
