package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// PeriodLockKey builds redis keys for settlement critical sections.
func PeriodLockKey(buildingID int64, year int) string {
	return fmt.Sprintf("billing:period:%d:%d:lock", buildingID, year)
}

// PeriodLocker serializes recalculations of the same (building, year).
// Concurrent runs delete-then-recreate the same settlement rows, so a
// second caller is rejected rather than queued.
type PeriodLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewPeriodLocker wraps a redis client in a redsync pool. A zero
// expiry falls back to five minutes.
func NewPeriodLocker(client *redis.Client, expiry time.Duration) *PeriodLocker {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &PeriodLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}
}

// Acquire takes the period mutex without waiting. It returns an unlock
// function, or ErrRecalculationRunning when another run holds the lock.
func (l *PeriodLocker) Acquire(ctx context.Context, buildingID int64, year int) (func() error, error) {
	mutex := l.rs.NewMutex(
		PeriodLockKey(buildingID, year),
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, ErrRecalculationRunning
	}
	return func() error {
		_, err := mutex.UnlockContext(ctx)
		return err
	}, nil
}
