package redis

import (
	"context"
	"time"

	"github.com/chatwright/chatwright/persistence"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

const LOCK_KEY string = "LOCK"

var _ persistence.Locker = new(redisLocker)

type redisLocker struct {
	baseDao
	pollInterval time.Duration
}

func NewLocker(conf Config) *redisLocker {
	return &redisLocker{
		baseDao:      *newBaseDao(conf),
		pollInterval: 50 * time.Millisecond,
	}
}

func NewLockerFromClient(client rd.UniversalClient, namespace string) *redisLocker {
	return &redisLocker{
		baseDao:      *newBaseDaoFromClient(client, namespace, 1),
		pollInterval: 50 * time.Millisecond,
	}
}

var unlockScript = rd.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock acquires a per-key mutex with a TTL so a crashed holder cannot
// wedge a session forever. Acquisition polls until the caller's
// context expires.
func (l *redisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (persistence.Unlock, error) {
	lockKey := l.getNamespaceKey(LOCK_KEY, key)
	token := uuid.New().String()
	for {
		ok, err := l.redisClient.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			unlock := func(ctx context.Context) error {
				return unlockScript.Run(ctx, l.redisClient, []string{lockKey}, token).Err()
			}
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ctx.Err()
			}
			return nil, persistence.ErrLockHeld
		case <-time.After(l.pollInterval):
		}
	}
}
