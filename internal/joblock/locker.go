// Package joblock provides a redis-backed lock so background jobs run
// on one instance at a time. Callers name the job; the locker owns the
// key namespace and the fallback lease.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// All job locks live under one namespace so they can be inspected
// (and, in anger, flushed) with a single SCAN pattern.
const keyPrefix = "fundops:jobs:"

// DefaultTTL is the lease applied when a job does not specify one. It
// must comfortably exceed a normal sweep but still expire a lock left
// behind by a crashed instance.
const DefaultTTL = 4 * time.Minute

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock claims the named job for ttl (DefaultTTL when ttl <= 0). The
// returned token proves ownership to Release.
func (l *Locker) TryLock(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if job == "" {
		return "", false, errors.New("job name is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+job, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the named job if token still owns it. A lock that
// already expired and was reclaimed elsewhere is left alone.
func (l *Locker) Release(ctx context.Context, job, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if job == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{keyPrefix + job}, token).Err()
}
