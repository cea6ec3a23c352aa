package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when the caller still owns
// it, so an expired-and-reacquired lock is never released by the
// previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a Redis-backed advisory lock guarding reconciliation runs.
// Two concurrent resolver runs over the same collection are an
// unguarded race at the store level; callers that cannot rely on
// store-side locking take this lock around Analyze+Resolve.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock creates a lock manager against the given Redis address.
func NewRunLock(addr, password string, db int, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RunLock{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

// Acquire takes the lock for the named collection and returns a
// release token. ErrLockHeld is returned when another run owns it.
func (l *RunLock) Acquire(ctx context.Context, collection string) (string, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key(collection), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("collection %s: %w", collection, ErrLockHeld)
	}
	return token, nil
}

// Release gives the lock back; a stale token is a no-op.
func (l *RunLock) Release(ctx context.Context, collection, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(collection)}, token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Close shuts down the Redis client.
func (l *RunLock) Close() error { return l.client.Close() }

func (l *RunLock) key(collection string) string {
	return "keiyaku:sync_lock:" + collection
}
