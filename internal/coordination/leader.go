package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepLeader implements redis-based leader election using SETNX with TTL.
// When several instances run against the same database, only the leader runs
// the periodic sweeps (decay, voice accrual, poll closure).
type SweepLeader struct {
	rdb        *redis.Client
	instanceID string
	lockKey    string
	lockTTL    time.Duration
}

// NewSweepLeader creates a sweep leadership coordinator.
// instanceID should be unique per instance (e.g., hostname-PID).
func NewSweepLeader(rdb *redis.Client, instanceID string) *SweepLeader {
	return &SweepLeader{
		rdb:        rdb,
		instanceID: instanceID,
		lockKey:    "sweep:leader",
		lockTTL:    30 * time.Second,
	}
}

// TryAcquire attempts to become the sweep leader. Returns true if this
// instance acquired leadership or already holds it, so several sweep loops in
// one process can share a single lease.
func (l *SweepLeader) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.lockKey, l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.rdb.Get(ctx, l.lockKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sweep leader: %w", err)
	}
	return holder == l.instanceID, nil
}

// Renew extends the leader lease. Returns an error if leadership was lost.
func (l *SweepLeader) Renew(ctx context.Context) error {
	currentLeader, err := l.rdb.Get(ctx, l.lockKey).Result()
	if err == redis.Nil {
		return fmt.Errorf("sweep lock lost")
	}
	if err != nil {
		return fmt.Errorf("failed to check sweep leader: %w", err)
	}

	if currentLeader != l.instanceID {
		return fmt.Errorf("sweep lock held by %s", currentLeader)
	}

	ok, err := l.rdb.Expire(ctx, l.lockKey, l.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to renew sweep lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("sweep lock lost during renewal")
	}

	return nil
}

// Release voluntarily gives up leadership. Deletes the lock only if this
// instance still holds it, so a newer leader's lock is never removed.
func (l *SweepLeader) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	_, err := l.rdb.Eval(ctx, script, []string{l.lockKey}, l.instanceID).Result()
	return err
}
