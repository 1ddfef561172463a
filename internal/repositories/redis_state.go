package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/redis/go-redis/v9"
)

// RedisStateCodeStore implements [models.StateCodeStore] on Redis.
//
// Each code is a key "<prefix>:<domain>:<code>" with the TTL set by Redis, so expired codes purge themselves.
// Verify is a DEL, which is atomic: exactly one caller observes the deletion.
type RedisStateCodeStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock
}

var _ models.StateCodeStore = (*RedisStateCodeStore)(nil)

// NewRedisStateCodeStore constructs a Redis-backed state store.
func NewRedisStateCodeStore(client redis.UniversalClient, prefix string) *RedisStateCodeStore {
	if prefix == "" {
		prefix = "linkd:state"
	}
	return &RedisStateCodeStore{client: client, prefix: strings.TrimSuffix(prefix, ":")}
}

// NewRedisClient opens a client for addr and verifies the connection.
func NewRedisClient(ctx context.Context, cfg shared.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *RedisStateCodeStore) key(domain, code string) string {
	return s.prefix + ":" + domain + ":" + code
}

// Generate stores a new code for domain with expiry ttl.
func (s *RedisStateCodeStore) Generate(ctx context.Context, domain string, ttl time.Duration) (*models.StateCode, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", shared.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", shared.ErrInvalidInput)
	}

	code, err := shared.RandomString(models.StateCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state code: %w", err)
	}

	state := &models.StateCode{
		ID:        shared.GenerateID(),
		Domain:    domain,
		Code:      code,
		ExpiresAt: s.clock.now().Add(ttl),
	}

	ok, err := s.client.SetNX(ctx, s.key(domain, code), state.ID, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrStateCollision, domain)
	}

	return state, nil
}

// Verify deletes (domain, code) and reports whether it existed.
func (s *RedisStateCodeStore) Verify(ctx context.Context, domain, code string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(domain, code)).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("delete state: %w", err)
	}
	return n == 1, nil
}
