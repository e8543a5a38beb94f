package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/policypal/palgraph/pkg/ports"
)

// unlockScript deletes the lock only when the caller still holds it, so a
// slow holder cannot release a lock that already expired and was reacquired.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Locker implements ports.ThreadLocker with Redis SET NX PX and a fenced
// Lua unlock.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a Locker. Lock keys are prefix+"lock:"+threadID.
func NewLocker(client *backend.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "palgraph:thread:"
	}
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires the per-thread lock, polling until the context is done. The
// lock value is a random token checked on unlock.
func (l *Locker) Lock(ctx context.Context, threadID string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + threadID
	token := uuid.NewString()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
