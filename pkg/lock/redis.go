package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock: not acquired")
	ErrNotHeld     = errors.New("lock: not held by this owner")
)

// releaseScript deletes the key only when it still holds our token,
// so an expired-and-reacquired lock is never released by the old owner.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// Mutex is a distributed lock over a single Redis key.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewMutex creates a distributed mutex for the given key. The TTL bounds
// how long a crashed holder can block other acquirers.
func NewMutex(client *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns ErrNotAcquired if another owner holds it.
func (m *Mutex) TryLock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	m.token = token
	return nil
}

// Unlock releases the lock if this mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	if m.token == "" {
		return ErrNotHeld
	}
	res, err := m.client.Eval(ctx, releaseScript, []string{m.key}, m.token).Int()
	if err != nil {
		return err
	}
	m.token = ""
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
