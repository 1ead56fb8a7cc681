package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers logged-out token IDs until the tokens would have expired.
type Revoker interface {
	// Revoke marks id as revoked until expiresAt.
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	// IsRevoked reports whether id has been revoked.
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker is an in-process Revoker for single-instance deployments and tests.
type MemoryRevoker struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

// NewMemoryRevoker returns an empty MemoryRevoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

func (r *MemoryRevoker) Revoke(_ context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop entries whose tokens have expired on their own.
	now := r.now()
	for k, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, k)
		}
	}
	if expiresAt.After(now) {
		r.revoked[id] = expiresAt
	}
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[id]
	return ok && exp.After(r.now()), nil
}

const revokedNamespace = "circles:revoked"

// RedisRevoker stores revoked token IDs in Redis with a TTL matching the
// token's remaining lifetime, so every server instance sees the same set.
type RedisRevoker struct {
	client redis.UniversalClient
}

// NewRedisRevoker connects to a single Redis node.
func NewRedisRevoker(addr, password string) *RedisRevoker {
	return &RedisRevoker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}),
	}
}

// Ping checks the connection.
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisRevoker) Close() error {
	return r.client.Close()
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedNamespace+":"+id, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	err := r.client.Get(ctx, revokedNamespace+":"+id).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
