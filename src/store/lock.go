package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when the lock stayed held by someone else for
// the whole bounded wait.
var ErrLockHeld = errors.New("store: dispatch lock held")

// Release only deletes the key while it still carries our token, so an
// expired lease re-acquired by another dispatch is never released by
// the previous holder.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const lockPollInterval = 50 * time.Millisecond

func lockKey(userID, configName string) string {
	return fmt.Sprintf("dispatch_lock:%s:%s", userID, configName)
}

// DispatchLock serializes order submission per (user, configuration)
// across all bridge instances. The lease expires on its own, so a
// crashed holder cannot wedge a configuration permanently.
type DispatchLock struct {
	rdb      *redis.Client
	newToken func() string
}

func NewDispatchLock(rdb *redis.Client) *DispatchLock {
	return &DispatchLock{rdb: rdb, newToken: uuid.NewString}
}

// Acquire tries to take the lock for (userID, configName), polling up
// to wait. It returns the fencing token needed to release, ErrLockHeld
// when the wait bound is exceeded, or the context error if ctx ends
// first.
func (l *DispatchLock) Acquire(ctx context.Context, userID, configName string, lease, wait time.Duration) (string, error) {
	key := lockKey(userID, configName)
	token := l.newToken()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return "", fmt.Errorf("acquire dispatch lock: %w", err)
		}
		if ok {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release frees the lock if the token still matches. A lost lease (the
// key expired or was taken over) is not an error for the caller.
func (l *DispatchLock) Release(ctx context.Context, userID, configName, token string) error {
	key := lockKey(userID, configName)

	_, err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Result()
	if err != nil {
		return fmt.Errorf("release dispatch lock: %w", err)
	}
	return nil
}
