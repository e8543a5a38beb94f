package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// ThreadLocker coordinates thread access across replicas. The executor
// acquires the lease before a run or resume so that at most one run per
// thread is active anywhere at a time.
type ThreadLocker interface {
	// Lock acquires a lease for the given thread id. It blocks until the
	// lease is acquired or the context is canceled. The returned UnlockFunc
	// MUST be called to release the lease; the TTL bounds the damage if the
	// holder dies first.
	Lock(ctx context.Context, threadID string, ttl time.Duration) (UnlockFunc, error)
}
