package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultClaimTTL must exceed the longest provider webhook retry window (24h).
const DefaultClaimTTL = 48 * time.Hour

// ClaimStore is an atomic first-writer-wins claim with expiry. TryClaim returns
// true exactly once per key within the TTL window. An error means the store could
// not answer; webhook processing treats that as transient and fails closed.
type ClaimStore interface {
	TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ClaimKey builds the idempotency key for a provider event.
func ClaimKey(provider, externalID, eventType string) string {
	return fmt.Sprintf("payments:claim:%s:%s:%s", provider, externalID, eventType)
}

// RedisClaimStore backs claims with Redis SET NX PX. Round trips are capped at 5s.
type RedisClaimStore struct {
	Client *redis.Client
}

func NewRedisClaimStore(client *redis.Client) *RedisClaimStore {
	return &RedisClaimStore{Client: client}
}

func (s *RedisClaimStore) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := s.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIdempotencyUnavailable, err)
	}
	return ok, nil
}

// MemoryClaimStore is the in-process implementation used in tests and single-node
// development runs. Same claim semantics, no cross-instance guarantees.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{claims: make(map[string]time.Time)}
}

func (s *MemoryClaimStore) TryClaim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.claims[key]; ok && exp.After(now) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}
