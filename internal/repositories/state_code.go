package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/shared"
)

// StateCodeRepository implements [models.StateCodeStore] on a SQL database.
//
// Every call first purges expired rows across all domains. Consumption is a single DELETE so
// concurrent verifiers of the same code cannot both succeed.
type StateCodeRepository struct {
	db     *sql.DB
	driver string
	clock  clock
}

var _ models.StateCodeStore = (*StateCodeRepository)(nil)

// NewStateCodeRepository creates a new [StateCodeRepository] with the given database connection
func NewStateCodeRepository(db *sql.DB, driver string) *StateCodeRepository {
	return &StateCodeRepository{db: db, driver: driver}
}

// Generate issues a new code for domain that stays valid for ttl.
func (r *StateCodeRepository) Generate(ctx context.Context, domain string, ttl time.Duration) (*models.StateCode, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", shared.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", shared.ErrInvalidInput)
	}

	if _, err := r.Purge(ctx); err != nil {
		return nil, err
	}

	code, err := shared.RandomString(models.StateCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state code: %w", err)
	}

	state := &models.StateCode{
		ID:        shared.GenerateID(),
		Domain:    domain,
		Code:      code,
		ExpiresAt: r.clock.now().Add(ttl),
	}

	query := shared.Rebind(r.driver, "INSERT INTO state_codes (id, domain, code, expires_at) VALUES (?, ?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, state.ID, state.Domain, state.Code, toMillis(state.ExpiresAt)); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrStateCollision, domain)
		}
		return nil, fmt.Errorf("failed to insert state code: %w", err)
	}

	return state, nil
}

// Verify consumes (domain, code) and reports whether it was live.
func (r *StateCodeRepository) Verify(ctx context.Context, domain, code string) (bool, error) {
	if _, err := r.Purge(ctx); err != nil {
		return false, err
	}

	query := shared.Rebind(r.driver, "DELETE FROM state_codes WHERE domain = ? AND code = ?")
	result, err := r.db.ExecContext(ctx, query, domain, code)
	if err != nil {
		return false, fmt.Errorf("failed to consume state code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// Purge deletes every expired code and returns how many were removed.
func (r *StateCodeRepository) Purge(ctx context.Context) (int64, error) {
	query := shared.Rebind(r.driver, "DELETE FROM state_codes WHERE expires_at < ?")
	result, err := r.db.ExecContext(ctx, query, toMillis(r.clock.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge state codes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// Count returns the number of stored codes for domain, expired or not.
func (r *StateCodeRepository) Count(ctx context.Context, domain string) (int, error) {
	var n int
	query := shared.Rebind(r.driver, "SELECT COUNT(*) FROM state_codes WHERE domain = ?")
	if err := r.db.QueryRowContext(ctx, query, domain).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count state codes: %w", err)
	}
	return n, nil
}
