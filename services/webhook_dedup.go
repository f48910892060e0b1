package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const dedupKeyPrefix = "cs:waha:msg:"

// dedupSweepInterval bounds how often the in-process map drops expired ids.
const dedupSweepInterval = time.Minute

// MessageDeduplicator remembers inbound message ids so gateway retries are
// processed once.
type MessageDeduplicator interface {
	FirstSeen(ctx context.Context, messageID string) (bool, error)
	// Forget releases an id so a redelivery is processed again.
	Forget(ctx context.Context, messageID string) error
}

// RedisDeduplicator uses SETNX with a TTL. With a nil client it falls back to
// an in-process map, which only deduplicates within one replica.
type RedisDeduplicator struct {
	Redis *redis.Client
	TTL   time.Duration

	mu        sync.Mutex
	seen      map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

func NewRedisDeduplicator(rdb *redis.Client, ttl time.Duration) *RedisDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduplicator{Redis: rdb, TTL: ttl, seen: map[string]time.Time{}, now: time.Now}
}

func (d *RedisDeduplicator) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	if d.Redis != nil {
		return d.Redis.SetNX(ctx, dedupKeyPrefix+messageID, 1, d.TTL).Result()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !now.Before(d.nextSweep) {
		for id, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, id)
			}
		}
		d.nextSweep = now.Add(dedupSweepInterval)
	}
	if exp, ok := d.seen[messageID]; ok && !now.After(exp) {
		return false, nil
	}
	d.seen[messageID] = now.Add(d.TTL)
	return true, nil
}

func (d *RedisDeduplicator) Forget(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	if d.Redis != nil {
		return d.Redis.Del(ctx, dedupKeyPrefix+messageID).Err()
	}

	d.mu.Lock()
	delete(d.seen, messageID)
	d.mu.Unlock()
	return nil
}
