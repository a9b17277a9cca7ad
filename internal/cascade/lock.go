package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"menucost/internal/log"
)

// Locker serializes recalculation jobs per workspace. TryLock never blocks;
// a lease expires after ttl so a crashed holder cannot wedge the workspace.
type Locker interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

func lockKey(workspaceID uint) string {
	return fmt.Sprintf("menucost:workspace:%d:recalculate", workspaceID)
}

type localLease struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLease
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), clock: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if lease, ok := l.held[key]; ok && (lease.expires.IsZero() || now.Before(lease.expires)) {
		return false, nil
	}
	lease := localLease{token: token}
	if ttl > 0 {
		lease.expires = now.Add(ttl)
	}
	l.held[key] = lease
	return true, nil
}

func (l *LocalLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, ok := l.held[key]; ok && lease.token == token {
		delete(l.held, key)
	}
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares the workspace lock across server instances.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Unlock deletes the key only while it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	err := unlockScript.Run(ctx, l.client, []string{key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}

// NewLocker returns a RedisLocker when redisURL is set and reachable, and a
// LocalLocker when it is empty. An unreachable Redis URL is an error.
func NewLocker(ctx context.Context, redisURL string) (Locker, error) {
	if redisURL == "" {
		log.Debug(ctx, "using in-process workspace lock")
		return NewLocalLocker(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	log.Info(ctx, "using redis workspace lock", "addr", opts.Addr)
	return NewRedisLocker(client), nil
}
