package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type draftEntry struct {
	data    []byte
	expires time.Time
}

// MemoryDrafts is a TTL map for draft bodies.
type MemoryDrafts struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]draftEntry
	now     func() time.Time
}

func NewMemoryDrafts(ttl time.Duration) *MemoryDrafts {
	return &MemoryDrafts{ttl: ttl, entries: make(map[string]draftEntry), now: time.Now}
}

func (d *MemoryDrafts) Put(ctx context.Context, key string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = draftEntry{data: append([]byte(nil), data...), expires: d.now().Add(d.ttl)}
	return nil
}

func (d *MemoryDrafts) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if d.now().After(e.expires) {
		delete(d.entries, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.data...), nil
}

func (d *MemoryDrafts) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
	return nil
}

// RedisDrafts stores draft bodies as plain string values with a TTL.
type RedisDrafts struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDrafts(client *redis.Client, ttl time.Duration) *RedisDrafts {
	return &RedisDrafts{client: client, ttl: ttl}
}

func (d *RedisDrafts) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return d.client.Set(ctx, key, data, d.ttl).Err()
}

func (d *RedisDrafts) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	data, err := d.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (d *RedisDrafts) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return d.client.Del(ctx, key).Err()
}
