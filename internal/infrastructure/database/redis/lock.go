package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

var ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held")

// releaseScript deletes the key only when it still carries our token, so an
// expired lock taken over by another worker is left alone.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// PairLock is a best-effort mutex across worker instances.  Workers take it
// before computing a pair so duplicate events for the same pair do not race.
type PairLock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewPairLock prepares a lock for key.  Nothing is acquired yet.
func NewPairLock(client *Client, key string, ttl time.Duration) *PairLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PairLock{client: client, key: "lock:" + key, token: uuid.NewString(), ttl: ttl}
}

// TryLock reports whether the lock was acquired.
func (l *PairLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrCodeCacheError, "acquire %s", l.key)
	}
	return ok, nil
}

// Unlock releases the lock.  It returns ErrLockNotHeld when the lock expired
// and was taken by someone else in the meantime.
func (l *PairLock) Unlock(ctx context.Context) error {
	n, err := l.client.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "release %s", l.key)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
