package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "kfdb:lock:"

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	ErrInvalidLock       = errors.New("lock name and ttl are required")
)

// Locker hands out single-holder Redis leases. It is nil when Redis is not
// configured; callers check Enabled and run unguarded in that case.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// Lease is a held lock. It expires on its own after the ttl given to Acquire.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes name for ttl. It returns nil and no error when another holder
// has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if !l.Enabled() {
		return nil, ErrLockNotConfigured
	}
	if name == "" || ttl <= 0 {
		return nil, ErrInvalidLock
	}

	lease := &Lease{client: l.client, key: lockKeyPrefix + name, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

// Release frees the lease unless it already lapsed and was taken by someone
// else.
func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	return unlockScript.Run(ctx, ls.client, []string{ls.key}, ls.token).Err()
}
