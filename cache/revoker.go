package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryRevoker keeps revoked token ids in process. Entries are dropped
// lazily once their token would have expired.
type MemoryRevoker struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{tokens: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if !until.After(r.now()) {
		return nil
	}
	r.mu.Lock()
	r.tokens[tokenID] = until
	r.mu.Unlock()
	return nil
}

func (r *MemoryRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.tokens[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(until) {
		delete(r.tokens, tokenID)
		return false, nil
	}
	return true, nil
}

// RedisRevoker stores revoked token ids with a TTL equal to the token's
// remaining lifetime.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err()
}

func (r *RedisRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	n, err := r.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revocationKey(tokenID string) string {
	return "revoked:" + tokenID
}
